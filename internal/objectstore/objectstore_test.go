package objectstore

import (
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
)

func TestIsNotFound(t *testing.T) {
	err := minio.ErrorResponse{Code: "NoSuchKey"}
	assert.True(t, isNotFound(err))

	other := minio.ErrorResponse{Code: "AccessDenied"}
	assert.False(t, isNotFound(other))
}

func TestNew_DefaultsMaxRetries(t *testing.T) {
	c, err := New(Config{Endpoint: "localhost:9000", AccessKeyID: "key", SecretAccessKey: "secret"})
	assert.NoError(t, err)
	assert.EqualValues(t, 3, c.maxRetries)
}
