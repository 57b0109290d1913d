// Package appservice provides the Azure App Service deployment tutorial
// tools. Each tool renders guidance text and the az CLI command for one
// tutorial step; nothing here talks to Azure.
package appservice

import (
	"fmt"
	"strings"

	"github.com/slighter12/appservice-mcp-go/tools"
)

const (
	DefaultDocsURL    = "https://learn.microsoft.com/azure/app-service/"
	DefaultHostSuffix = "azurewebsites.net"
)

// Runtimes accepted by gather_project_info.
var Runtimes = []string{"Node.js", "Python", ".NET", "Java", "PHP"}

// Provider holds the read-only context shared by the tutorial handlers.
type Provider struct {
	DocsURL    string
	HostSuffix string
}

// NewProvider returns a provider with the public Azure defaults.
func NewProvider() *Provider {
	return &Provider{DocsURL: DefaultDocsURL, HostSuffix: DefaultHostSuffix}
}

func (p *Provider) docsURL() string {
	if p == nil || strings.TrimSpace(p.DocsURL) == "" {
		return DefaultDocsURL
	}
	return p.DocsURL
}

func (p *Provider) hostSuffix() string {
	if p == nil || strings.TrimSpace(p.HostSuffix) == "" {
		return DefaultHostSuffix
	}
	return strings.TrimPrefix(p.HostSuffix, ".")
}

// AppURL is the default public URL of a web app.
func (p *Provider) AppURL(appName string) string {
	return fmt.Sprintf("https://%s.%s/", appName, p.hostSuffix())
}

// Register adds every tutorial tool to r in tutorial order.
func Register(r *tools.Registry, p *Provider) error {
	if err := r.Add(Definitions(p)...); err != nil {
		return fmt.Errorf("register app service tools: %w", err)
	}
	return nil
}
