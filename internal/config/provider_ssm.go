package config

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// GetParameters accepts at most ten names per request.
const ssmMaxBatchSize = 10

type ssmClient interface {
	GetParameters(ctx context.Context, params *ssm.GetParametersInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersOutput, error)
}

// MissingParametersError lists every path Parameter Store did not know,
// across all requests of one resolution.
type MissingParametersError struct {
	Names []string
}

func (e *MissingParametersError) Error() string {
	return "SSM parameters not found: " + strings.Join(e.Names, ", ")
}

// SSMOption configures an SSMProvider.
type SSMOption func(*SSMProvider)

// WithDecryption makes reads decrypt SecureString parameters. The pointers
// this pipeline resolves are plain String ARNs and names, so the provider
// reads without decryption unless asked, and needs no kms:Decrypt grant.
func WithDecryption() SSMOption {
	return func(p *SSMProvider) { p.decrypt = true }
}

func withSSMClient(client ssmClient) SSMOption {
	return func(p *SSMProvider) { p.client = client }
}

// SSMProvider resolves parameter paths from Parameter Store in the Lambda's
// own region. The client is created on first use, so constructing a
// provider for a local run costs nothing.
type SSMProvider struct {
	region  string
	decrypt bool
	client  ssmClient
}

// NewSSMProvider returns a provider for region.
func NewSSMProvider(region string, opts ...SSMOption) *SSMProvider {
	p := &SSMProvider{region: region}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *SSMProvider) ensureClient(ctx context.Context) error {
	if p.client != nil {
		return nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(p.region))
	if err != nil {
		return fmt.Errorf("loading AWS config for SSM (region=%s): %w", p.region, err)
	}
	p.client = ssm.NewFromConfig(cfg)
	return nil
}

// GetParametersBatch resolves keys, ten per request. Duplicate keys are
// requested once. Unknown paths do not stop the remaining requests; they
// are gathered and reported together as a *MissingParametersError.
func (p *SSMProvider) GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error) {
	names := slices.Clone(keys)
	slices.Sort(names)
	names = slices.Compact(names)

	result := make(map[string]string, len(names))
	if len(names) == 0 {
		return result, nil
	}
	if err := p.ensureClient(ctx); err != nil {
		return nil, err
	}

	var missing []string
	for batch := range slices.Chunk(names, ssmMaxBatchSize) {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("resolving SSM parameters: %w", err)
		}

		out, err := p.client.GetParameters(ctx, &ssm.GetParametersInput{
			Names:          batch,
			WithDecryption: aws.Bool(p.decrypt),
		})
		if err != nil {
			return nil, fmt.Errorf("SSM GetParameters %s..%s: %w", batch[0], batch[len(batch)-1], err)
		}
		for _, param := range out.Parameters {
			result[aws.ToString(param.Name)] = aws.ToString(param.Value)
		}
		missing = append(missing, out.InvalidParameters...)
	}

	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, &MissingParametersError{Names: missing}
	}
	return result, nil
}
