package secrets

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/ericfitz/oauthreg/internal/config"
	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/secrets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const oauthSettings = `{"github":"{\"clientId\":\"my-client-id\",\"clientSecret\":\"my-client-secret\"}"}`

func TestNewProvider(t *testing.T) {
	ctx := context.Background()

	p, err := NewProvider(ctx, nil)
	assert.NoError(t, err)
	assert.Nil(t, p)

	p, err = NewProvider(ctx, &config.SecretsConfig{Provider: config.SecretsProviderStore})
	assert.NoError(t, err)
	assert.Nil(t, p)

	p, err = NewProvider(ctx, &config.SecretsConfig{Provider: config.SecretsProviderEnv, EnvPrefix: "TEST_CM_"})
	require.NoError(t, err)
	assert.Equal(t, "env", p.Name())

	_, err = NewProvider(ctx, &config.SecretsConfig{Provider: config.SecretsProviderAWS})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewProvider(ctx, &config.SecretsConfig{Provider: config.SecretsProviderOCI, OCIVaultID: "vault"})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewProvider(ctx, &config.SecretsConfig{Provider: "vault"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestEnvProvider(t *testing.T) {
	t.Setenv("TEST_CM_OAUTH2_SETTINGS", oauthSettings)
	t.Setenv("TEST_CM_BROKEN", "[1,2]")
	p := NewEnvProvider("TEST_CM_")
	ctx := context.Background()

	data, err := p.GetConfigMap(ctx, "oauth2-settings")
	require.NoError(t, err)
	assert.Equal(t, `{"clientId":"my-client-id","clientSecret":"my-client-secret"}`, data["github"])

	data, err = p.GetConfigMap(ctx, "missing")
	assert.NoError(t, err)
	assert.Nil(t, data)

	_, err = p.GetConfigMap(ctx, "broken")
	assert.ErrorIs(t, err, ErrInvalidSecret)

	assert.Equal(t, DefaultEnvPrefix+"A_B_C1", NewEnvProvider("").envKey("a.b-c1"))
	assert.NoError(t, p.Close())
}

type fakeSecretsManager struct {
	mu      sync.Mutex
	values  map[string]string
	err     error
	calls   int
	lastIDs []string
}

func (f *fakeSecretsManager) GetSecretValue(_ context.Context, params *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	id := aws.ToString(params.SecretId)
	f.lastIDs = append(f.lastIDs, id)
	if f.err != nil {
		return nil, f.err
	}
	value, ok := f.values[id]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: aws.String("secret not found")}
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(value)}, nil
}

func TestAWSProvider(t *testing.T) {
	fake := &fakeSecretsManager{values: map[string]string{"oauthreg/oauth2-settings": oauthSettings}}
	p := newAWSProviderWithClient(fake, "oauthreg/")
	ctx := context.Background()

	data, err := p.GetConfigMap(ctx, "oauth2-settings")
	require.NoError(t, err)
	assert.Contains(t, data["github"], "my-client-id")

	// second read is served from cache
	data["github"] = "tampered"
	again, err := p.GetConfigMap(ctx, "oauth2-settings")
	require.NoError(t, err)
	assert.Contains(t, again["github"], "my-client-id")
	assert.Equal(t, 1, fake.calls)
	assert.Equal(t, []string{"oauthreg/oauth2-settings"}, fake.lastIDs)

	p.InvalidateCache()
	_, err = p.GetConfigMap(ctx, "oauth2-settings")
	require.NoError(t, err)
	assert.Equal(t, 2, fake.calls)

	missing, err := p.GetConfigMap(ctx, "absent")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestAWSProvider_Errors(t *testing.T) {
	throttled := errors.New("throttling exception")
	p := newAWSProviderWithClient(&fakeSecretsManager{err: throttled}, "")

	_, err := p.GetConfigMap(context.Background(), "oauth2-settings")
	assert.ErrorIs(t, err, throttled)

	p = newAWSProviderWithClient(&fakeSecretsManager{values: map[string]string{"bad": "not json"}}, "")
	_, err = p.GetConfigMap(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrInvalidSecret)
}

type fakeServiceError struct {
	status int
}

func (e fakeServiceError) Error() string           { return http.StatusText(e.status) }
func (e fakeServiceError) GetHTTPStatusCode() int  { return e.status }
func (e fakeServiceError) GetMessage() string      { return http.StatusText(e.status) }
func (e fakeServiceError) GetCode() string         { return "NotAuthorizedOrNotFound" }
func (e fakeServiceError) GetOpcRequestID() string { return "req-1" }

type fakeVault struct {
	bundles map[string]string
	err     error
	calls   int
}

func (f *fakeVault) GetSecretBundleByName(_ context.Context, request secrets.GetSecretBundleByNameRequest) (secrets.GetSecretBundleByNameResponse, error) {
	f.calls++
	if f.err != nil {
		return secrets.GetSecretBundleByNameResponse{}, f.err
	}
	value, ok := f.bundles[*request.SecretName]
	if !ok {
		return secrets.GetSecretBundleByNameResponse{}, fakeServiceError{status: http.StatusNotFound}
	}
	return secrets.GetSecretBundleByNameResponse{
		SecretBundle: secrets.SecretBundle{
			SecretBundleContent: secrets.Base64SecretBundleContentDetails{
				Content: common.String(base64.StdEncoding.EncodeToString([]byte(value))),
			},
		},
	}, nil
}

func TestOCIProvider(t *testing.T) {
	fake := &fakeVault{bundles: map[string]string{"oauth2-settings": oauthSettings}}
	p := newOCIProviderWithClient(fake, "compartment", "vault")
	ctx := context.Background()

	data, err := p.GetConfigMap(ctx, "oauth2-settings")
	require.NoError(t, err)
	assert.Contains(t, data["github"], "my-client-secret")

	_, err = p.GetConfigMap(ctx, "oauth2-settings")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.calls)

	missing, err := p.GetConfigMap(ctx, "absent")
	assert.NoError(t, err)
	assert.Nil(t, missing)

	p = newOCIProviderWithClient(&fakeVault{err: fakeServiceError{status: http.StatusInternalServerError}}, "c", "v")
	_, err = p.GetConfigMap(ctx, "oauth2-settings")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get OCI secret bundle oauth2-settings")
}
