package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

func TestNewS3Store(t *testing.T) {
	t.Run("requires bucket", func(t *testing.T) {
		if _, err := NewS3Store(context.Background(), S3Options{}); err == nil {
			t.Fatal("NewS3Store() expected error without bucket")
		}
	})

	t.Run("object key escapes tenant", func(t *testing.T) {
		s, err := NewS3Store(context.Background(), S3Options{
			Bucket:          "databox-records",
			Prefix:          "prod/",
			Region:          "us-east-1",
			Endpoint:        "http://localhost:9000",
			UsePathStyle:    true,
			AccessKeyID:     "test",
			SecretAccessKey: "test",
		})
		if err != nil {
			t.Fatalf("NewS3Store() error = %v", err)
		}
		if got, want := s.key("team/alice"), "prod/tenants/team%2Falice.rec"; got != want {
			t.Errorf("key() = %q, want %q", got, want)
		}
	})
}

func TestParseVersionMetadata(t *testing.T) {
	tests := []struct {
		name    string
		meta    map[string]string
		want    int64
		wantErr bool
	}{
		{name: "present", meta: map[string]string{versionMetadataKey: "42"}, want: 42},
		{name: "missing", meta: map[string]string{}, wantErr: true},
		{name: "not a number", meta: map[string]string{versionMetadataKey: "x"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseVersionMetadata(tt.meta)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseVersionMetadata() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseVersionMetadata() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestS3ErrorClassification(t *testing.T) {
	tests := []struct {
		name             string
		err              error
		wantNotFound     bool
		wantPrecondition bool
	}{
		{name: "no such key", err: &types.NoSuchKey{}, wantNotFound: true},
		{name: "wrapped not found", err: fmt.Errorf("head: %w", &types.NotFound{}), wantNotFound: true},
		{name: "generic not found code", err: &smithy.GenericAPIError{Code: "NotFound"}, wantNotFound: true},
		{name: "precondition failed", err: &smithy.GenericAPIError{Code: "PreconditionFailed"}, wantPrecondition: true},
		{name: "conditional conflict", err: &smithy.GenericAPIError{Code: "ConditionalRequestConflict"}, wantPrecondition: true},
		{name: "access denied", err: &smithy.GenericAPIError{Code: "AccessDenied"}},
		{name: "plain error", err: errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNotFound(tt.err); got != tt.wantNotFound {
				t.Errorf("isNotFound() = %v, want %v", got, tt.wantNotFound)
			}
			if got := isPreconditionFailed(tt.err); got != tt.wantPrecondition {
				t.Errorf("isPreconditionFailed() = %v, want %v", got, tt.wantPrecondition)
			}
		})
	}
}
