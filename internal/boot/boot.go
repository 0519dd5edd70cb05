// Package boot provides shared cold-start bootstrap logic.
//
// The Lambda poller and the long-running listener need the same subset of
// setup: AWS config, DynamoDB, and secrets from SSM Parameter Store. This
// package extracts those init patterns so each entry point stays a short
// composition of helpers.
package boot

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/fpang/brand-listener/internal/store"
)

// AWSClients holds the core AWS SDK clients shared by the entry points.
type AWSClients struct {
	Config      aws.Config
	SSM         *ssm.Client
	EventBridge *eventbridge.Client
	S3          *s3.Client
}

// InitAWS loads the default AWS config and the clients built on it.
func InitAWS() AWSClients {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return AWSClients{
		Config:      cfg,
		SSM:         ssm.NewFromConfig(cfg),
		EventBridge: eventbridge.NewFromConfig(cfg),
		S3:          s3.NewFromConfig(cfg),
	}
}

// InitDynamo creates the DynamoDB-backed store from the table name in the
// given environment variable. Fatals if the env var is empty.
func InitDynamo(cfg aws.Config, tableEnvVar string) *store.DynamoStore {
	tableName := os.Getenv(tableEnvVar)
	if tableName == "" {
		log.Fatal().Str("envVar", tableEnvVar).Msg("DynamoDB table environment variable is required")
	}
	ddbClient := dynamodb.NewFromConfig(cfg)
	return store.NewDynamoStore(ddbClient, tableName)
}

// LoadGeminiKey fetches the Gemini API key from SSM Parameter Store if not
// already set via GEMINI_API_KEY env var. Fatals on error, since nothing in
// the pipeline works without it.
func LoadGeminiKey(ssmClient *ssm.Client) {
	if os.Getenv("GEMINI_API_KEY") != "" {
		return
	}
	paramName := os.Getenv("SSM_GEMINI_KEY_PARAM")
	if paramName == "" {
		paramName = "/brand-listener/prod/gemini-api-key"
	}
	ssmStart := time.Now()
	result, err := ssmClient.GetParameter(context.Background(), &ssm.GetParameterInput{
		Name:           &paramName,
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		log.Fatal().Err(err).Str("param", paramName).Msg("Failed to read Gemini API key from SSM")
	}
	os.Setenv("GEMINI_API_KEY", *result.Parameter.Value)
	log.Debug().Str("param", paramName).Dur("elapsed", time.Since(ssmStart)).Msg("Gemini API key loaded from SSM")
}

// platformSecrets maps secret env vars to their default SSM parameter names.
// Override a parameter name by setting SSM_<ENV_VAR>_PARAM.
var platformSecrets = map[string]string{
	"REDDIT_CLIENT_SECRET":  "/brand-listener/prod/reddit-client-secret",
	"REDDIT_PASSWORD":       "/brand-listener/prod/reddit-password",
	"MASTODON_ACCESS_TOKEN": "/brand-listener/prod/mastodon-access-token",
	"YOUTUBE_API_KEY":       "/brand-listener/prod/youtube-api-key",
	"YOUTUBE_OAUTH_TOKEN":   "/brand-listener/prod/youtube-oauth-token",
}

// LoadPlatformSecrets fills missing platform credential env vars from SSM.
// Non-fatal: a missing parameter just leaves that platform unable to
// authenticate, which the monitor logs and skips.
func LoadPlatformSecrets(ssmClient *ssm.Client) {
	for envVar, defaultParam := range platformSecrets {
		if os.Getenv(envVar) != "" {
			continue
		}
		paramName := os.Getenv("SSM_" + envVar + "_PARAM")
		if paramName == "" {
			paramName = defaultParam
		}
		result, err := ssmClient.GetParameter(context.Background(), &ssm.GetParameterInput{
			Name:           &paramName,
			WithDecryption: aws.Bool(true),
		})
		if err != nil {
			log.Warn().Err(err).Str("param", paramName).Str("envVar", envVar).
				Msg("Platform secret not found in SSM")
			continue
		}
		os.Setenv(envVar, *result.Parameter.Value)
		log.Debug().Str("param", paramName).Str("envVar", envVar).Msg("Platform secret loaded from SSM")
	}
}
