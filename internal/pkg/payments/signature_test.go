package payments

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWebhookSignature(t *testing.T) {
	body := []byte(`{"registration_id":"R1","gateway_reference":"gw_1","status":"succeeded"}`)
	sig := SignPayload(body, "s3cret")

	assert.True(t, strings.HasPrefix(sig, SignaturePrefix))
	assert.True(t, VerifyWebhookSignature(body, sig, "s3cret"))
	assert.True(t, VerifyWebhookSignature(body, strings.TrimPrefix(sig, SignaturePrefix), "s3cret"))
	assert.True(t, VerifyWebhookSignature(body, strings.ToUpper(sig), "s3cret"))

	assert.False(t, VerifyWebhookSignature(body, sig, "other"))
	assert.False(t, VerifyWebhookSignature([]byte(`{}`), sig, "s3cret"))
	assert.False(t, VerifyWebhookSignature(body, "", "s3cret"))
	assert.False(t, VerifyWebhookSignature(body, sig, ""))
	assert.False(t, VerifyWebhookSignature(body, "sha256=zz", "s3cret"))
}
