package config

import "testing"

func TestDefaultRunOptions(t *testing.T) {
	t.Setenv("SKYTEST_STACK", "ci-stack")
	t.Setenv("SKYTEST_ACTIVATION_ATTEMPTS", "12")

	opts := DefaultRunOptions()
	if opts.StackName != "ci-stack" {
		t.Errorf("StackName = %q, want ci-stack", opts.StackName)
	}
	if opts.ActivationAttempts != 12 {
		t.Errorf("ActivationAttempts = %d, want 12", opts.ActivationAttempts)
	}
	if opts.LogAttempts != 20 || opts.StreamAttempts != 5 {
		t.Errorf("unexpected default budgets: %+v", opts)
	}
}

func TestDefaultRunOptionsBadInteger(t *testing.T) {
	t.Setenv("SKYTEST_LOG_ATTEMPTS", "not-a-number")

	opts := DefaultRunOptions()
	if opts.LogAttempts != 20 {
		t.Errorf("bad integer should fall back to default, got %d", opts.LogAttempts)
	}
}

func TestValidate(t *testing.T) {
	opts := DefaultRunOptions()
	opts.StackName = "ci-stack"
	if err := opts.Validate(); err != nil {
		t.Errorf("valid options rejected: %v", err)
	}

	opts.StackName = ""
	if err := opts.Validate(); err == nil {
		t.Error("missing stack name must be rejected")
	}

	opts.StackName = "ci-stack"
	opts.LogAttempts = 0
	if err := opts.Validate(); err == nil {
		t.Error("zero attempt budget must be rejected")
	}
}

func TestGetAWSRegion(t *testing.T) {
	t.Setenv("AWS_REGION", "")
	if got := GetAWSRegion(); got != DefaultAWSRegion {
		t.Errorf("GetAWSRegion() = %q, want default %q", got, DefaultAWSRegion)
	}

	t.Setenv("AWS_REGION", "eu-west-1")
	if got := GetAWSRegion(); got != "eu-west-1" {
		t.Errorf("GetAWSRegion() = %q, want eu-west-1", got)
	}
}

func TestGetAWSProfileInLambda(t *testing.T) {
	t.Setenv("AWS_PROFILE", "ci")
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "skytest-run-x")
	if got := GetAWSProfile(); got != "" {
		t.Errorf("profile must be empty inside Lambda, got %q", got)
	}
}
