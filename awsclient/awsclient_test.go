package awsclient

import (
	"context"
	"testing"
)

func TestLoad_StaticCredentials(t *testing.T) {
	cfg, err := Load(context.Background(), Config{
		AccessKey: "AKID",
		SecretKey: "SECRET",
		Endpoint:  "http://localhost:4566",
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Region != DefaultRegion {
		t.Errorf("expected default region, got %q", cfg.Region)
	}
	creds, err := cfg.Credentials.Retrieve(context.Background())
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if creds.AccessKeyID != "AKID" || creds.SecretAccessKey != "SECRET" {
		t.Errorf("unexpected credentials %+v", creds)
	}
	if cfg.BaseEndpoint == nil || *cfg.BaseEndpoint != "http://localhost:4566" {
		t.Errorf("expected endpoint override, got %v", cfg.BaseEndpoint)
	}
}

func TestLoad_HalfCredentialsRejected(t *testing.T) {
	if _, err := Load(context.Background(), Config{AccessKey: "AKID"}); err == nil {
		t.Error("expected error for access key without secret")
	}
}
