package appservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/slighter12/appservice-mcp-go/mcp"
	"github.com/slighter12/appservice-mcp-go/schema"
	"github.com/slighter12/appservice-mcp-go/tools"
)

// Tool names in tutorial order.
const (
	ToolIntroduction         = "introduction"
	ToolGatherProjectInfo    = "gather_project_info"
	ToolCheckPrereqs         = "check_prereqs"
	ToolCreateResourceGroup  = "create_resource_group"
	ToolCreateAppServicePlan = "create_app_service_plan"
	ToolCreateWebApp         = "create_web_app"
	ToolDeployCode           = "deploy_code"
	ToolValidateDeployment   = "validate_deployment"
	ToolNextSteps            = "next_steps"
)

// Definitions returns the tutorial tools bound to p.
func Definitions(p *Provider) []tools.Definition {
	return []tools.Definition{
		{
			Name:        ToolIntroduction,
			Description: "Introduces the Azure App Service deployment tutorial with an overview.",
			Schema:      schema.MustNew(),
			Handler:     p.introduction,
		},
		{
			Name:        ToolGatherProjectInfo,
			Description: "Collects info about the user's app to be deployed to Azure App Service.",
			Schema: schema.MustNew(
				schema.String("app_name").Describe("Name of your application."),
				schema.Enum("runtime", Runtimes...).Describe("App runtime environment."),
				schema.String("region").Describe("Preferred Azure region for deployment."),
			),
			Handler: p.gatherProjectInfo,
		},
		{
			Name:        ToolCheckPrereqs,
			Description: "Checks if the user has the required Azure CLI and account setup.",
			Schema:      schema.MustNew(),
			Handler:     p.checkPrereqs,
		},
		{
			Name:        ToolCreateResourceGroup,
			Description: "Guides user to create an Azure Resource Group.",
			Schema: schema.MustNew(
				schema.String("resource_group").Describe("Resource group name."),
				schema.String("region").Describe("Azure region."),
			),
			Handler: p.createResourceGroup,
		},
		{
			Name:        ToolCreateAppServicePlan,
			Description: "Guides user to create an Azure App Service Plan.",
			Schema: schema.MustNew(
				schema.String("plan_name").Describe("App Service Plan name."),
				schema.String("resource_group").Describe("Resource group to use"),
				schema.String("sku").Describe("SKU (e.g., F1, B1, P1V2)."),
			),
			Handler: p.createAppServicePlan,
		},
		{
			Name:        ToolCreateWebApp,
			Description: "Assist user in creating the actual web app in Azure.",
			Schema: schema.MustNew(
				schema.String("app_name"),
				schema.String("resource_group"),
				schema.String("plan_name"),
				schema.String("runtime"),
			),
			Handler: p.createWebApp,
		},
		{
			Name:        ToolDeployCode,
			Description: "Guide user through deploying their app code.",
			Schema: schema.MustNew(
				schema.String("app_name"),
				schema.String("resource_group"),
				schema.String("source_dir").Describe("Path to source code folder."),
			),
			Handler: p.deployCode,
		},
		{
			Name:        ToolValidateDeployment,
			Description: "Suggests a way to verify the deployment was successful.",
			Schema: schema.MustNew(
				schema.String("app_name"),
				schema.String("resource_group"),
			),
			Handler: p.validateDeployment,
		},
		{
			Name:        ToolNextSteps,
			Description: "Suggests next steps (setting env vars, scaling, CI/CD, etc.).",
			Schema:      schema.MustNew(),
			Handler:     p.nextSteps,
		},
	}
}

func (p *Provider) introduction(context.Context, schema.Args) ([]mcp.Content, error) {
	return text(
		"Welcome to the Azure App Service deployment tutorial!",
		"",
		"This tutorial walks you through publishing a web app to Azure App Service in nine steps:",
		"gather project info, check prerequisites, create a resource group, create an App Service plan,",
		"create the web app, deploy your code, validate the deployment and explore next steps.",
		"",
		"Prerequisites: an Azure subscription, the Azure CLI and the source code of the app to deploy.",
	), nil
}

func (p *Provider) gatherProjectInfo(_ context.Context, args schema.Args) ([]mcp.Content, error) {
	return text(
		fmt.Sprintf("Collected info: App Name: %s, Runtime: %s, Region: %s.",
			args.String("app_name"), args.String("runtime"), args.String("region")),
		"",
		fmt.Sprintf("The app will be reachable at %s once deployed.", p.AppURL(args.String("app_name"))),
		"Next, run check_prereqs to confirm your Azure CLI setup.",
	), nil
}

func (p *Provider) checkPrereqs(context.Context, schema.Args) ([]mcp.Content, error) {
	return text(
		"Please ensure you have the Azure CLI installed and are logged in.",
		"",
		"1. Install the Azure CLI: https://learn.microsoft.com/cli/azure/install-azure-cli",
		"2. Sign in: az login",
		"3. Confirm the active subscription: az account show --output table",
		"4. Switch subscriptions if needed: az account set --subscription <subscription-id>",
	), nil
}

func (p *Provider) createResourceGroup(_ context.Context, args schema.Args) ([]mcp.Content, error) {
	return text(
		"To create a resource group:",
		command("az group create",
			"--name", args.String("resource_group"),
			"--location", args.String("region")),
	), nil
}

func (p *Provider) createAppServicePlan(_ context.Context, args schema.Args) ([]mcp.Content, error) {
	return text(
		"To create an App Service plan:",
		command("az appservice plan create",
			"--name", args.String("plan_name"),
			"--resource-group", args.String("resource_group"),
			"--sku", args.String("sku")),
	), nil
}

func (p *Provider) createWebApp(_ context.Context, args schema.Args) ([]mcp.Content, error) {
	return text(
		"To create the web app:",
		command("az webapp create",
			"--name", args.String("app_name"),
			"--resource-group", args.String("resource_group"),
			"--plan", args.String("plan_name"),
			"--runtime", args.String("runtime")),
		"",
		"List the runtime identifiers available in your region with: az webapp list-runtimes",
	), nil
}

func (p *Provider) deployCode(_ context.Context, args schema.Args) ([]mcp.Content, error) {
	return text(
		"To deploy your code:",
		command("az webapp deploy",
			"--resource-group", args.String("resource_group"),
			"--name", args.String("app_name"),
			"--src-path", args.String("source_dir")),
	), nil
}

func (p *Provider) validateDeployment(_ context.Context, args schema.Args) ([]mcp.Content, error) {
	appName := args.String("app_name")
	return text(
		fmt.Sprintf("To check the deployment, browse: %s", p.AppURL(appName)),
		"or use:",
		command("az webapp show",
			"--name", appName,
			"--resource-group", args.String("resource_group")),
		"",
		"Stream application logs with:",
		command("az webapp log tail",
			"--name", appName,
			"--resource-group", args.String("resource_group")),
	), nil
}

func (p *Provider) nextSteps(context.Context, schema.Args) ([]mcp.Content, error) {
	return text(
		"Explore additional configuration options:",
		"- Environment variables: az webapp config appsettings set --settings KEY=VALUE",
		"- Scaling: az appservice plan update --sku <sku> or --number-of-workers <n>",
		"- CI/CD: az webapp deployment github-actions add",
		"- Custom domains and TLS certificates",
		"",
		fmt.Sprintf("See the Azure docs: %s", p.docsURL()),
	), nil
}

func text(lines ...string) []mcp.Content {
	return []mcp.Content{mcp.TextContent(strings.Join(lines, "\n"))}
}

// command renders an az invocation, quoting flag values for a POSIX shell.
func command(base string, flags ...string) string {
	var b strings.Builder
	b.WriteString(base)
	for i, f := range flags {
		b.WriteByte(' ')
		if i%2 == 1 {
			b.WriteString(shellQuote(f))
			continue
		}
		b.WriteString(f)
	}
	return b.String()
}

func shellQuote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\n\"'$`\\|&;<>()*?[]#~!{}") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
