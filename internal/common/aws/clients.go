// Package aws builds the SES and SNS clients used to announce completed controls.
package aws

import (
	"context"
	"fmt"

	"appcc-workers/internal/common/config"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// Clients groups the notification services behind one credential chain.
type Clients struct {
	SES *ses.Client
	SNS *sns.Client
}

// NewClients loads the default credential chain for cfg.Region. A non-empty
// cfg.Endpoint sends both services to that URL, e.g. a LocalStack container.
func NewClients(ctx context.Context, cfg config.AWSConfig) (*Clients, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var (
		sesOpts []func(*ses.Options)
		snsOpts []func(*sns.Options)
	)
	if cfg.Endpoint != "" {
		sesOpts = append(sesOpts, func(o *ses.Options) {
			o.EndpointResolver = ses.EndpointResolverFromURL(cfg.Endpoint)
		})
		snsOpts = append(snsOpts, func(o *sns.Options) {
			o.EndpointResolver = sns.EndpointResolverFromURL(cfg.Endpoint)
		})
	}

	return &Clients{
		SES: ses.NewFromConfig(awsCfg, sesOpts...),
		SNS: sns.NewFromConfig(awsCfg, snsOpts...),
	}, nil
}
