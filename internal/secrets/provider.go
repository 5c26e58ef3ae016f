package secrets

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projectd/internal/awsconf"
	"github.com/fyrsmithlabs/projectd/internal/config"
	"github.com/fyrsmithlabs/projectd/internal/logging"
)

// ErrParameterNotFound is returned when a configured parameter does not exist.
var ErrParameterNotFound = errors.New("parameter not found")

// SSMAPI is the subset of the SSM client the provider calls.
type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Provider reads decrypted parameters from SSM.
type Provider struct {
	client SSMAPI
	logger *zap.Logger
}

// NewProvider wraps an existing client.
func NewProvider(client SSMAPI, logger *zap.Logger) (*Provider, error) {
	if client == nil {
		return nil, errors.New("ssm client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{client: client, logger: logger}, nil
}

// OpenProvider builds an SSM client from the default AWS chain.
func OpenProvider(ctx context.Context, cfg config.SecretsConfig, logger *zap.Logger) (*Provider, error) {
	awsCfg, err := awsconf.Load(ctx, awsconf.Options{Region: cfg.Region})
	if err != nil {
		return nil, err
	}
	client := ssm.NewFromConfig(awsCfg, func(o *ssm.Options) {
		o.BaseEndpoint = awsconf.Endpoint(cfg.Endpoint)
	})
	return NewProvider(client, logger)
}

// Get returns the decrypted value stored at name.
func (p *Provider) Get(ctx context.Context, name string) (string, error) {
	out, err := p.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		var notFound *types.ParameterNotFound
		if errors.As(err, &notFound) {
			return "", fmt.Errorf("%w: %s", ErrParameterNotFound, name)
		}
		return "", fmt.Errorf("ssm get parameter %s: %w", name, err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("%w: %s has no value", ErrParameterNotFound, name)
	}
	return *out.Parameter.Value, nil
}

// Resolve fills the JWT secret, Mongo URI and database, and Postgres DSN
// from their configured parameter paths. Empty paths are skipped. It is a
// no-op when secrets are disabled.
func (p *Provider) Resolve(ctx context.Context, cfg *config.Config) error {
	if !cfg.Secrets.Enabled {
		return nil
	}

	targets := []struct {
		path   string
		secret bool
		set    func(string)
	}{
		{cfg.Secrets.JWTSecretPath, true, func(v string) { cfg.Auth.Secret = config.Secret(v) }},
		{cfg.Secrets.MongoURIPath, true, func(v string) { cfg.Store.Mongo.URI = config.Secret(v) }},
		{cfg.Secrets.MongoDatabasePath, false, func(v string) { cfg.Store.Mongo.Database = v }},
		{cfg.Secrets.PostgresDSNPath, true, func(v string) { cfg.Store.Postgres.DSN = config.Secret(v) }},
	}

	for _, target := range targets {
		if target.path == "" {
			continue
		}
		value, err := p.Get(ctx, target.path)
		if err != nil {
			return err
		}
		target.set(value)

		valueField := zap.String("value", value)
		if target.secret {
			valueField = logging.Secret("value", config.Secret(value))
		}
		p.logger.Debug("resolved parameter", zap.String("parameter", target.path), valueField)
	}
	return nil
}
