package rbac

import (
	"context"
	"strconv"
)

const (
	AdministratorRole = "Administrator"
	ViewerRole        = "Viewer"
)

// DefaultPages is the stock page catalog. Order follows catalog position.
func DefaultPages() []Page {
	catalog := []struct{ title, path, desc, icon string }{
		{"Dashboard", "/dashboard", "Overview of key metrics and system status.", "layout-dashboard"},
		{"Users", "/admin/users", "Manage application users and permissions.", "users"},
		{"Roles", "/admin/roles", "Define and assign user roles.", "shield"},
		{"Pages", "/admin/pages", "Manage site pages and content.", "file"},
		{"Settings", "/settings", "Configure system preferences and options.", "settings"},
		{"Profile", "/profile", "View and edit your user profile.", "user"},
		{"Reports", "/reports", "Access analytics and system reports.", "bar-chart"},
		{"Sales Report", "/reports/sales", "View sales metrics and revenue data.", "dollar-sign"},
		{"User Activity", "/reports/activity", "Review user activity logs.", "activity"},
		{"Branches", "/settings/branchs", "Manage organization branches and locations.", "git-branch"},
		{"Units", "/settings/units", "Configure organizational units and departments.", "box"},
		{"Unit Profile", "/settings/init-profile", "Manage unit configurations and profiles.", "clipboard"},
		{"Branch Units", "/settings/branch-unit", "Connect branches with their respective units.", "network"},
		{"Voucher Status", "/settings/voucher-status", "Configure voucher statuses and lifecycle.", "tag"},
		{"Login Logs", "/reports/login-log", "View system access and authentication logs.", "log-in"},
		{"Audit Logs", "/reports/audit-log", "Review system changes and audit trail.", "clipboard-list"},
	}
	out := make([]Page, 0, len(catalog))
	for i, c := range catalog {
		out = append(out, Page{
			ID:          strconv.Itoa(i + 1),
			Title:       c.title,
			Path:        c.path,
			Order:       i + 1,
			Description: c.desc,
			Icon:        c.icon,
		})
	}
	return out
}

// Seed loads the default catalog, the Administrator and Viewer roles and one
// active administrator with id adminID. A repository that already holds pages
// is left untouched.
func Seed(ctx context.Context, repo Repository, adminID string) error {
	existing, err := repo.ListPages(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	var all, viewer []string
	for _, p := range DefaultPages() {
		created, err := repo.CreatePage(ctx, p)
		if err != nil {
			return err
		}
		all = append(all, created.ID)
		if p.Path == "/dashboard" || p.Path == "/profile" {
			viewer = append(viewer, created.ID)
		}
	}

	admin, err := repo.CreateRole(ctx, Role{
		Name:        AdministratorRole,
		Description: "Full access to every page.",
		PageIDs:     all,
	})
	if err != nil {
		return err
	}
	if _, err := repo.CreateRole(ctx, Role{
		Name:        ViewerRole,
		Description: "Dashboard and profile only.",
		PageIDs:     viewer,
	}); err != nil {
		return err
	}

	if adminID == "" {
		return nil
	}
	_, err = repo.CreateUser(ctx, User{
		ID:       adminID,
		Username: "admin",
		FullName: "Administrator",
		Active:   true,
		RoleIDs:  []string{admin.ID},
	})
	return err
}
