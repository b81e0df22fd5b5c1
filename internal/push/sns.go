package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
)

// snsAPI is the slice of the SNS client the sender uses.
type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
	CreatePlatformEndpoint(ctx context.Context, params *sns.CreatePlatformEndpointInput, optFns ...func(*sns.Options)) (*sns.CreatePlatformEndpointOutput, error)
	DeleteEndpoint(ctx context.Context, params *sns.DeleteEndpointInput, optFns ...func(*sns.Options)) (*sns.DeleteEndpointOutput, error)
}

// SNSSender pushes through AWS SNS platform endpoints. Each device token
// is registered once as an endpoint; sends publish to the endpoint ARN.
type SNSSender struct {
	client          snsAPI
	applicationARNs map[string]string
	logger          *zap.Logger
}

// NewSNSSender builds an SNSSender with the default AWS credential
// chain. applicationARNs maps platform names (ios, android) to SNS
// platform application ARNs.
func NewSNSSender(ctx context.Context, region string, applicationARNs map[string]string, logger *zap.Logger) (*SNSSender, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &SNSSender{
		client:          sns.NewFromConfig(cfg),
		applicationARNs: applicationARNs,
		logger:          logger,
	}, nil
}

// SendToTokens publishes the payload to every endpoint. Tokens whose
// endpoints are gone or disabled come back in InvalidTokens so the
// caller can deactivate them; transient gateway errors only count as
// failures.
func (s *SNSSender) SendToTokens(ctx context.Context, tokens []models.DeviceToken, payload Payload) Result {
	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("encode push payload failed", zap.Error(err))
		return Result{FailureCount: len(tokens)}
	}
	message := string(body)

	var res Result
	for _, token := range tokens {
		_, err := s.client.Publish(ctx, &sns.PublishInput{
			TargetArn: aws.String(token.EndpointARN),
			Message:   aws.String(message),
		})
		if err == nil {
			res.SuccessCount++
			observability.IncPushAttempt("success")
			continue
		}

		res.FailureCount++
		if isPermanent(err) {
			res.InvalidTokens = append(res.InvalidTokens, token.Token)
			observability.IncPushAttempt("invalid_token")
			s.logger.Info("push endpoint invalid",
				zap.Int64("user_id", token.UserID),
				zap.String("platform", token.Platform))
			continue
		}
		observability.IncPushAttempt("error")
		s.logger.Warn("push publish failed",
			zap.Int64("user_id", token.UserID),
			zap.String("platform", token.Platform),
			zap.Error(err))
	}
	return res
}

// RegisterToken creates (or re-creates) the platform endpoint for a
// device token and returns its ARN.
func (s *SNSSender) RegisterToken(ctx context.Context, platform, token string) (string, error) {
	appARN, ok := s.applicationARNs[platform]
	if !ok {
		return "", fmt.Errorf("no platform application for %q", platform)
	}
	out, err := s.client.CreatePlatformEndpoint(ctx, &sns.CreatePlatformEndpointInput{
		PlatformApplicationArn: aws.String(appARN),
		Token:                  aws.String(token),
	})
	if err != nil {
		return "", fmt.Errorf("create platform endpoint: %w", err)
	}
	return aws.ToString(out.EndpointArn), nil
}

// Unregister deletes the platform endpoint. A missing endpoint is not an
// error.
func (s *SNSSender) Unregister(ctx context.Context, endpointARN string) error {
	if endpointARN == "" {
		return nil
	}
	_, err := s.client.DeleteEndpoint(ctx, &sns.DeleteEndpointInput{
		EndpointArn: aws.String(endpointARN),
	})
	if err != nil && isPermanent(err) {
		return nil
	}
	return err
}

// isPermanent classifies gateway errors: disabled or deleted endpoints
// and rejected parameters will never succeed on retry.
func isPermanent(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "EndpointDisabled", "NotFound", "NotFoundException", "InvalidParameter":
		return true
	default:
		return false
	}
}
