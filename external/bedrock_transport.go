// Bedrock signing transport for forwarded model calls.
//
// Provides an http.RoundTripper that signs requests with AWS SigV4 for the
// bedrock-runtime service. The forwarder installs it when provider is "bedrock".
package external

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
)

const (
	bedrockService       = "bedrock"
	defaultBedrockRegion = "us-east-1"
)

// BedrockSigningTransport is an http.RoundTripper that signs requests with AWS SigV4.
type BedrockSigningTransport struct {
	credentials aws.CredentialsProvider
	region      string
	signer      *v4.Signer
	base        http.RoundTripper
	now         func() time.Time
}

// NewBedrockSigningTransport loads credentials from the standard AWS chain
// and returns a signing transport. A nil base uses http.DefaultTransport.
func NewBedrockSigningTransport(ctx context.Context, region string, base http.RoundTripper) (*BedrockSigningTransport, error) {
	if region == "" {
		region = defaultBedrockRegion
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	if _, err := cfg.Credentials.Retrieve(ctx); err != nil {
		return nil, fmt.Errorf("failed to retrieve AWS credentials: %w", err)
	}
	return NewBedrockSigningTransportWithCredentials(cfg.Credentials, region, base), nil
}

// NewBedrockSigningTransportWithCredentials builds a transport from an explicit
// credentials provider, e.g. aws.CredentialsProviderFunc or static keys.
func NewBedrockSigningTransportWithCredentials(creds aws.CredentialsProvider, region string, base http.RoundTripper) *BedrockSigningTransport {
	if region == "" {
		region = defaultBedrockRegion
	}
	if base == nil {
		base = http.DefaultTransport
	}
	return &BedrockSigningTransport{
		credentials: creds,
		region:      region,
		signer:      v4.NewSigner(),
		base:        base,
		now:         time.Now,
	}
}

// Region returns the signing region.
func (t *BedrockSigningTransport) Region() string { return t.region }

// RoundTrip signs the request with SigV4 before sending.
func (t *BedrockSigningTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read request body for signing: %w", err)
		}
	}

	creds, err := t.credentials.Retrieve(req.Context())
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve AWS credentials: %w", err)
	}

	// RoundTrippers must not mutate the caller's request.
	signed := req.Clone(req.Context())
	signed.Body = io.NopCloser(bytes.NewReader(body))
	signed.ContentLength = int64(len(body))

	sum := sha256.Sum256(body)
	if err := t.signer.SignHTTP(req.Context(), creds, signed, hex.EncodeToString(sum[:]), bedrockService, t.region, t.now()); err != nil {
		return nil, fmt.Errorf("failed to sign Bedrock request: %w", err)
	}

	return t.base.RoundTrip(signed)
}

// BedrockEndpoint returns the invoke URL for a Bedrock model in region.
func BedrockEndpoint(region, model string) string {
	if region == "" {
		region = defaultBedrockRegion
	}
	return fmt.Sprintf("https://bedrock-runtime.%s.amazonaws.com/model/%s/invoke", region, model)
}
