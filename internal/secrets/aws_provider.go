package secrets

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/ericfitz/oauthreg/internal/slogging"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// secretValueGetter is the subset of the Secrets Manager client used here
type secretValueGetter interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSProvider reads config maps from AWS Secrets Manager.
// Config map "oauth2-settings" is the secret <prefix>oauth2-settings.
type AWSProvider struct {
	client secretValueGetter
	prefix string
	cache  *configMapCache
}

// NewAWSProvider creates a new AWS Secrets Manager provider
func NewAWSProvider(ctx context.Context, region, secretPrefix string) (*AWSProvider, error) {
	logger := slogging.Get()

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithHTTPClient(&http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	logger.Info("AWS Secrets Manager provider initialized in region: %s (prefix %q)", region, secretPrefix)

	return newAWSProviderWithClient(secretsmanager.NewFromConfig(cfg), secretPrefix), nil
}

func newAWSProviderWithClient(client secretValueGetter, secretPrefix string) *AWSProvider {
	return &AWSProvider{
		client: client,
		prefix: secretPrefix,
		cache:  newConfigMapCache(),
	}
}

// GetConfigMap fetches and caches the secret backing the named config map
func (p *AWSProvider) GetConfigMap(ctx context.Context, name string) (map[string]string, error) {
	logger := slogging.Get()

	if data, ok := p.cache.get(name); ok {
		logger.Debug("AWS Secrets Manager cache hit for config map: %s", name)
		return data, nil
	}

	secretID := p.prefix + name
	result, err := p.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			logger.Debug("AWS secret %s not found", secretID)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to retrieve AWS secret %s: %w", secretID, err)
	}

	var raw []byte
	switch {
	case result.SecretString != nil:
		raw = []byte(*result.SecretString)
	case result.SecretBinary != nil:
		raw = result.SecretBinary
	default:
		return nil, fmt.Errorf("AWS secret %s has no value", secretID)
	}

	data, err := decodeConfigMap(name, raw)
	if err != nil {
		return nil, err
	}

	p.cache.put(name, data)
	logger.Info("Loaded config map %s with %d entries from AWS Secrets Manager", name, len(data))
	return data, nil
}

// Name returns the provider name
func (p *AWSProvider) Name() string {
	return "aws"
}

// Close releases resources (no-op for AWS provider)
func (p *AWSProvider) Close() error {
	return nil
}

// InvalidateCache clears the cached config maps, forcing a reload on next access
func (p *AWSProvider) InvalidateCache() {
	p.cache.clear()
}
