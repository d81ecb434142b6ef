package upstream

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/failcore/runtime/runtime/proxy"
)

// BedrockUpstream forwards proxied requests to AWS Bedrock. Unlike the
// Anthropic/OpenAI upstreams, Bedrock's InvokeModel API already accepts
// an opaque JSON body and returns one, so it is a natural fit for the
// proxy's raw-bytes contract: no SDK-typed request/response translation
// is needed, only the InvokeModel call itself.
//
// go.mod carries aws-sdk-go-v2 and bedrockruntime directly but not the
// config/credentials submodules, so credentials are supplied through
// aws.CredentialsProviderFunc rather than config.LoadDefaultConfig.
type BedrockUpstream struct {
	client *bedrockruntime.Client
	region string
}

var _ proxy.UpstreamClient = (*BedrockUpstream)(nil)

// NewBedrockUpstream builds a BedrockUpstream for region using static
// credentials. sessionToken may be empty.
func NewBedrockUpstream(region, accessKeyID, secretAccessKey, sessionToken string) *BedrockUpstream {
	creds := aws.Credentials{
		AccessKeyID:     accessKeyID,
		SecretAccessKey: secretAccessKey,
		SessionToken:    sessionToken,
	}
	cfg := aws.Config{
		Region: region,
		Credentials: aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
			return creds, nil
		}),
	}
	return &BedrockUpstream{
		client: bedrockruntime.NewFromConfig(cfg),
		region: region,
	}
}

// ResolveURL returns the Bedrock model ID (the "endpoint" a caller
// supplies is treated as the model ID InvokeModel expects).
func (u *BedrockUpstream) ResolveURL(provider, endpoint string) string {
	return endpoint
}

// ForwardRequest invokes the named model with body as the raw request
// payload and returns its raw response payload unchanged. method and
// headers are accepted for interface symmetry with the HTTP-based
// upstreams but unused: InvokeModel has no verb or header concept.
func (u *BedrockUpstream) ForwardRequest(ctx context.Context, url, method string, headers map[string]string, body []byte) (*proxy.Response, error) {
	out, err := u.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(url),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("upstream: bedrock invoke model: %w", err)
	}

	respHeaders := map[string]string{}
	if out.ContentType != nil {
		respHeaders["content-type"] = *out.ContentType
	}

	return &proxy.Response{Status: 200, Headers: respHeaders, Body: out.Body}, nil
}
