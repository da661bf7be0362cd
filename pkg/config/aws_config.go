package config

import "os"

const (
	// DefaultAWSRegion is used when AWS_REGION is not set
	DefaultAWSRegion = "us-east-1"
)

// GetAWSRegion returns the AWS region to use
func GetAWSRegion() string {
	region := os.Getenv("AWS_REGION")
	if region != "" {
		return region
	}

	return DefaultAWSRegion
}

// GetAWSProfile returns the AWS profile to use
func GetAWSProfile() string {
	// In Lambda environment, we don't use profiles
	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		return ""
	}

	return os.Getenv("AWS_PROFILE")
}

// GetStackName returns the deployment stack whose outputs the harness
// resolves (artifact bucket, execution role). Empty means unconfigured.
func GetStackName() string {
	return os.Getenv("SKYTEST_STACK")
}
