package load

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/graphport/graphport/internal/target"
)

// ErrProvisioning marks credential provisioning failures. They are reported
// but never block the data load, with one exception: locking down the
// default user is refused outright unless the provisioned identity verified.
var ErrProvisioning = errors.New("credential provisioning failed")

const (
	CredentialScopeGraph = "graph"
	CredentialScopeAll   = "all"
)

// Credentials describes the access-control identity to provision on the
// target after loading.
type Credentials struct {
	Username    string
	Password    string
	Scope       string // graph | all
	LockDefault bool
}

type ProvisionReport struct {
	UserCreated   bool
	Verified      bool
	DefaultLocked bool
}

// ProvisionUser creates or overwrites the identity, restricted to the given
// graph key patterns when scope is "graph". The identity is verified by
// authenticating a probe connection; only a verified identity permits
// disabling the default unauthenticated user.
func ProvisionUser(ctx context.Context, tgt target.Commander, creds Credentials, graphPatterns []string) (*ProvisionReport, error) {
	report := &ProvisionReport{}

	args := []any{"ACL", "SETUSER", creds.Username, "reset", "on", ">" + creds.Password}
	if creds.Scope == CredentialScopeAll {
		args = append(args, "allkeys", "+@all")
	} else {
		for _, pattern := range graphPatterns {
			args = append(args, "~"+pattern)
		}
		args = append(args,
			"+ping", "+info", "+graph.query", "+graph.ro_query", "+graph.explain", "+graph.list")
	}

	if _, err := tgt.Command(ctx, args...); err != nil {
		return report, fmt.Errorf("%w: ACL SETUSER %s: %v", ErrProvisioning, creds.Username, err)
	}
	report.UserCreated = true

	if err := tgt.VerifyCredentials(ctx, creds.Username, creds.Password); err != nil {
		if creds.LockDefault {
			return report, fmt.Errorf(
				"%w: refusing to disable the default user, provisioned identity %q did not verify: %v",
				ErrProvisioning, creds.Username, err)
		}
		return report, fmt.Errorf("%w: %v", ErrProvisioning, err)
	}
	report.Verified = true
	slog.Info("credentials provisioned", "username", creds.Username, "scope", creds.Scope)

	if creds.LockDefault {
		if _, err := tgt.Command(ctx, "ACL", "SETUSER", "default", "off"); err != nil {
			return report, fmt.Errorf("%w: failed to disable default user: %v", ErrProvisioning, err)
		}
		report.DefaultLocked = true
		slog.Info("default user disabled")
	}

	return report, nil
}
