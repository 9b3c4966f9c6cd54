// Package capability provides the default capability checker used by the
// document lock guards: ownership and write grants come from the document
// record, administrators from configuration.
package capability

import (
	"context"
	"slices"
	"strings"

	"github.com/dukex/signoff/pkg/models"
)

// Roles implements document.CapabilityChecker.
type Roles struct {
	administrators map[string]struct{}
}

// NewRoles creates a checker with the given administrator principals.
func NewRoles(administrators ...string) *Roles {
	admins := make(map[string]struct{}, len(administrators))

	for _, admin := range administrators {
		admin = strings.TrimSpace(admin)
		if admin != "" {
			admins[admin] = struct{}{}
		}
	}

	return &Roles{administrators: admins}
}

// HasWriteCapability is true for the owner, administrators and explicit writers.
func (r *Roles) HasWriteCapability(ctx context.Context, actor string, doc *models.Document) bool {
	if actor == "" {
		return false
	}

	return r.IsOwner(ctx, actor, doc) || r.IsAdministrator(ctx, actor) || slices.Contains(doc.Writers, actor)
}

func (r *Roles) IsOwner(_ context.Context, actor string, doc *models.Document) bool {
	return actor != "" && doc.OwnerID == actor
}

func (r *Roles) IsAdministrator(_ context.Context, actor string) bool {
	_, ok := r.administrators[actor]

	return ok
}

// Administrators returns the configured administrators in sorted order.
func (r *Roles) Administrators() []string {
	admins := make([]string, 0, len(r.administrators))
	for admin := range r.administrators {
		admins = append(admins, admin)
	}

	slices.Sort(admins)

	return admins
}
