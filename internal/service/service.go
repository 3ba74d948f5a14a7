package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"auth-service/internal/domain"

	"github.com/zitadel/zitadel-go/v3/pkg/client"
	v2 "github.com/zitadel/zitadel-go/v3/pkg/client/zitadel/user/v2"
	"github.com/zitadel/zitadel-go/v3/pkg/zitadel"
	"go.uber.org/zap"
)

// IdentityMirror copies verified accounts into an external identity provider.
type IdentityMirror interface {
	Provision(ctx context.Context, a *domain.Account) error
}

// ZitadelConfig - connection settings for the Zitadel management API
type ZitadelConfig struct {
	Domain  string
	OrgID   string
	PAT     string
	KeyPath string
}

// ZitadelMirror provisions verified accounts as Zitadel human users
type ZitadelMirror struct {
	client *client.Client
	orgID  string
	logger *zap.Logger
}

// NewZitadelMirror connects to Zitadel using a PAT or a service user key file.
func NewZitadelMirror(ctx context.Context, cfg ZitadelConfig, logger *zap.Logger) (*ZitadelMirror, error) {
	if cfg.Domain == "" {
		return nil, errors.New("zitadel domain is not set")
	}
	if cfg.OrgID == "" {
		return nil, errors.New("zitadel organization id is not set")
	}
	if cfg.PAT == "" && cfg.KeyPath == "" {
		return nil, errors.New("either a zitadel PAT or key path must be set")
	}

	// local instances run without TLS
	var instance *zitadel.Zitadel
	if cfg.Domain == "homelab.localhost" || cfg.Domain == "localhost" {
		instance = zitadel.New(cfg.Domain, zitadel.WithInsecure("8080"))
	} else {
		instance = zitadel.New(cfg.Domain)
	}

	var authOption client.Option
	if cfg.PAT != "" {
		authOption = client.WithAuth(client.PAT(cfg.PAT))
	} else {
		authOption = client.WithAuth(client.DefaultServiceUserAuthentication(
			cfg.KeyPath,
			client.ScopeZitadelAPI(),
		))
	}

	zitadelClient, err := client.New(ctx, instance, authOption)
	if err != nil {
		return nil, fmt.Errorf("failed to create zitadel client: %w", err)
	}

	logger.Info("zitadel mirror initialized", zap.String("domain", cfg.Domain))
	return &ZitadelMirror{client: zitadelClient, orgID: cfg.OrgID, logger: logger}, nil
}

// Provision creates the user unless one with the same username already exists.
func (m *ZitadelMirror) Provision(ctx context.Context, a *domain.Account) error {
	exists, err := m.userExists(ctx, a.Email)
	if err != nil {
		return err
	}
	if exists {
		m.logger.Debug("zitadel user already present", zap.String("account_id", a.ID))
		return nil
	}

	given, family := splitName(a.FullName)
	username := a.Email
	resp, err := m.client.UserServiceV2().CreateUser(ctx, &v2.CreateUserRequest{
		OrganizationId: m.orgID,
		Username:       &username,
		UserType: &v2.CreateUserRequest_Human_{
			Human: &v2.CreateUserRequest_Human{
				Profile: &v2.SetHumanProfile{
					GivenName:  given,
					FamilyName: family,
				},
				Email: &v2.SetHumanEmail{
					Email: a.Email,
					Verification: &v2.SetHumanEmail_IsVerified{
						IsVerified: true,
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create user in zitadel: %w", err)
	}

	m.logger.Info("account mirrored to zitadel",
		zap.String("account_id", a.ID), zap.String("zitadel_user_id", resp.GetId()))
	return nil
}

func (m *ZitadelMirror) userExists(ctx context.Context, username string) (bool, error) {
	resp, err := m.client.UserServiceV2().ListUsers(ctx, &v2.ListUsersRequest{
		Queries: []*v2.SearchQuery{
			{
				Query: &v2.SearchQuery_UserNameQuery{
					UserNameQuery: &v2.UserNameQuery{
						UserName: username,
					},
				},
			},
		},
	})
	if err != nil {
		return false, fmt.Errorf("failed to search zitadel user: %w", err)
	}
	return len(resp.GetResult()) > 0, nil
}

// splitName maps a free-form full name onto given and family names.
// Zitadel requires both to be non-empty.
func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "-", "-"
	case 1:
		return parts[0], parts[0]
	}
	return strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1]
}
