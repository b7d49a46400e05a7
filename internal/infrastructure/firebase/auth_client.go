package firebase

import (
	"context"
	"fmt"

	fbapp "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"bizconnect/internal/domain/entity"
)

const (
	ClaimRole       = "role"
	ClaimBusinessID = "business_id"
)

// ClientOption picks inline service-account JSON over a credentials file; with neither,
// application default credentials are used.
func ClientOption(credentialsJSON, credentialsPath string) []option.ClientOption {
	switch {
	case credentialsJSON != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(credentialsJSON))}
	case credentialsPath != "":
		return []option.ClientOption{option.WithCredentialsFile(credentialsPath)}
	}
	return nil
}

func NewApp(ctx context.Context, projectID string, opts ...option.ClientOption) (*fbapp.App, error) {
	app, err := fbapp.NewApp(ctx, &fbapp.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase: %v", err)
	}
	return app, nil
}

type FirebaseAuthClient struct {
	client *auth.Client
}

func NewFirebaseAuthClient(client *auth.Client) *FirebaseAuthClient {
	return &FirebaseAuthClient{
		client: client,
	}
}

// VerifyToken checks a Firebase ID token. Role and business id come from custom claims;
// a token without a role claim is a plain user.
func (f *FirebaseAuthClient) VerifyToken(ctx context.Context, token string) (entity.Principal, error) {
	result, err := f.client.VerifyIDToken(ctx, token)
	if err != nil {
		return entity.Principal{}, err
	}
	return principalFromClaims(result.UID, result.Claims), nil
}

func principalFromClaims(uid string, claims map[string]interface{}) entity.Principal {
	p := entity.Principal{UserID: uid, Role: entity.RoleUser}
	if role, ok := claims[ClaimRole].(string); ok && role != "" {
		p.Role = role
	}
	if businessID, ok := claims[ClaimBusinessID].(string); ok {
		p.BusinessID = businessID
	}
	return p
}
