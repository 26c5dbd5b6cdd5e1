package explore

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/doeshing/gitscope/internal/domain"
)

// ModeConfig is the per-mode wiring of the loop: system instructions, the
// answer contract, how many lines file summaries return, and whether the
// search capability is offered.
type ModeConfig struct {
	FileLines       int
	System          string
	FinalAnswerDesc string
	SearchEnabled   bool
}

// ConfigFor returns the configuration for mode. The switch is closed on
// purpose: a new mode must be wired here before it can run.
func ConfigFor(mode domain.ExplorationMode) (ModeConfig, error) {
	switch mode {
	case domain.ModeFirstPass:
		return ModeConfig{
			FileLines:       100,
			System:          firstPassSystem,
			FinalAnswerDesc: firstPassAnswer,
			SearchEnabled:   false,
		}, nil
	case domain.ModeFeatures:
		return ModeConfig{
			FileLines:       40,
			System:          featuresSystem,
			FinalAnswerDesc: featuresAnswer,
			SearchEnabled:   true,
		}, nil
	case domain.ModeServices:
		return ModeConfig{
			FileLines:       100,
			System:          servicesSystem,
			FinalAnswerDesc: servicesAnswer,
			SearchEnabled:   true,
		}, nil
	case domain.ModeGeneric:
		return ModeConfig{
			FileLines:       80,
			System:          genericSystem,
			FinalAnswerDesc: genericAnswer,
			SearchEnabled:   true,
		}, nil
	default:
		return ModeConfig{}, fmt.Errorf("unknown exploration mode %q", mode)
	}
}

// DefaultPrompt is the prompt used when a request asks for an exploration
// without providing one.
func DefaultPrompt(mode domain.ExplorationMode) string {
	if mode == domain.ModeFirstPass {
		return "Analyze this repository and provide a comprehensive overview"
	}
	return "What are the key features and components of this codebase?"
}

// parseAnswer turns the raw formal answer into the mode's result shape.
// Unparseable JSON degrades to a result that carries the raw text as the
// summary instead of failing the whole run.
func parseAnswer(mode domain.ExplorationMode, raw string) domain.ExplorationResult {
	switch mode {
	case domain.ModeFirstPass:
		var parsed domain.FirstPassResult
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			return domain.ExplorationResult{FirstPass: &domain.FirstPassResult{
				Summary:        raw,
				KeyFiles:       []string{},
				Infrastructure: []string{},
				Dependencies:   []string{},
				UserStories:    []string{},
				Pages:          []string{},
			}}
		}
		if parsed.Summary == "" {
			parsed.Summary = raw
		}
		fillFirstPass(&parsed)
		return domain.ExplorationResult{FirstPass: &parsed}
	case domain.ModeFeatures:
		var parsed domain.FeaturesResult
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			return domain.ExplorationResult{Features: &domain.FeaturesResult{
				Summary:  raw,
				KeyFiles: []string{},
				Features: []string{},
			}}
		}
		if parsed.Summary == "" {
			parsed.Summary = raw
		}
		if parsed.KeyFiles == nil {
			parsed.KeyFiles = []string{}
		}
		if parsed.Features == nil {
			parsed.Features = []string{}
		}
		return domain.ExplorationResult{Features: &parsed}
	default:
		// services and generic answers are delivered verbatim.
		return domain.ExplorationResult{Raw: raw}
	}
}

func fillFirstPass(r *domain.FirstPassResult) {
	if r.KeyFiles == nil {
		r.KeyFiles = []string{}
	}
	if r.Infrastructure == nil {
		r.Infrastructure = []string{}
	}
	if r.Dependencies == nil {
		r.Dependencies = []string{}
	}
	if r.UserStories == nil {
		r.UserStories = []string{}
	}
	if r.Pages == nil {
		r.Pages = []string{}
	}
}

const genericSystem = `You are a code exploration assistant. Use the provided tools to answer the user's prompt.`

const genericAnswer = `Provide the final answer to the user. YOU MUST CALL THIS TOOL AT THE END OF YOUR EXPLORATION.`

const firstPassSystem = `You are a codebase exploration assistant. Use the provided tools to quickly explore the codebase and get a high-level understanding. DONT GO DEEP. Focus on general language and framework, specific core libraries, integrations, and features. Try to understand the main user story of the codebase just by looking at the file structure. YOU NEED TO RETURN AN ANSWER AS FAST AS POSSIBLE! So the best approach is 3-4 tool calls only: 1) repo_overview 2) file_summary of the package.json (or other main package file), 3) The main router file of page/endpoint names, ONLY if you can identify it first try, and 4) final_answer. DO NOT GO DEEPER THAN THIS.`

const firstPassAnswer = genericAnswer + `

Return a simple JSON object with the following fields:

- "summary": a SHORT 1-2 sentence synopsis of the codebase.
- "key_files": an array of a few core package and agent instruction files. Focus on package files like package.json, and core markdown files. DO NOT include code files unless they are central to the codebase, such as the main DB schema file.
- "infrastructure"/"dependencies"/"user_stories"/"pages": short arrays of core elements of the application, 1-2 words each. Include just a few dependencies, ONLY if it seems like they are central to the application. Try to find the main user flows and pages just by looking at file names, or a couple file contents. In total try to target 10-12 items for these four categories. Get at least one in each category, but don't make anything up!

{
  "summary": "This is a next.js project with a postgres database and a github oauth implementation",
  "key_files": ["package.json", "README.md", "schema.prisma"],
  "infrastructure": ["Next.js", "Postgres", "Typescript"],
  "dependencies": ["Github Integration", "D3.js", "React"],
  "user_stories": ["Authentication", "Payments"],
  "pages": ["User Journeys page", "Admin Dashboard"]
}`

const featuresSystem = `You are a codebase exploration assistant. Use the provided tools to explore the codebase and answer the user's question. Focus on general language and framework first, then specific core libraries, integrations, and features. Try to understand the core functionality (user stories) of the codebase. Explore files, functions, and component names to understand the main user stories, pages, UX components, or workflows in the application.`

const featuresAnswer = genericAnswer + `

Return a simple JSON object with the following fields:

- "summary": a 1-4 sentence short synopsis of the codebase.
- "key_files": an array of the core package and agent instruction files. Focus on package files like package.json, and core markdown files. DO NOT include code files unless they are central to the codebase, such as the main DB schema file.
- "features": an array of about 20 core user stories or pages, 1-4 words each. Each one should be focused on ONE SINGLE user action. Keep them short and to the point BUT SPECIFIC, NOT GENERAL! For example "Github Integration" and "Google Oauth Login" are separate, not one "Integrations".

{
  "summary": "This is a next.js project with a postgres database and a github oauth implementation",
  "key_files": ["package.json", "README.md", "schema.prisma"],
  "features": ["Authentication", "User Journeys page", "Payments", "Admin Dashboard", "Notifications"]
}`

const servicesSystem = `You are a codebase exploration assistant. Your job is to identify the various services, integrations, and environment variables needed to set up and run this codebase. Take your time exploring the codebase to find the most likely setup services and env vars. You might need to use the fulltext_search tool to find instances of "process.env." or other similar patterns, based on the coding language(s) used in the project. You will be asked to output actual configuration files at the end, so make sure you find everything you need to do that!`

const servicesAnswer = genericAnswer + `

Return three files: a pm2.config.js, a .env file, and a docker-compose.yml. For each file, put "FILENAME: " followed by the filename (no markdown headers, just the plain filename), then the content in backticks. YOU MUST RETURN ALL 3 FILES!

- pm2.config.js: the actual dev services for running this project (MY_REPO_NAME). Often it is just one single service, but sometimes the backend/frontend might be separate services. IMPORTANT: each service env should have an INSTALL_COMMAND so our sandbox system knows how to install dependencies! You can also add optional BUILD_COMMAND, TEST_COMMAND, E2E_TEST_COMMAND, and PRE_START_COMMAND if you find those in the package file. Please name one of the services "frontend" no matter what. The cwd should start with /workspaces/MY_REPO_NAME.
- .env: the environment variables needed to run the project, with example values.
- docker-compose.yml: the auxiliary services needed to run the project, such as databases, caches, queues, etc.`

// replaceRepoName substitutes the placeholder used by the services answer
// contract with the checkout directory name.
func replaceRepoName(text, repoPath string) string {
	name := repoPath
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		name = "my-repo"
	}
	return strings.ReplaceAll(text, "MY_REPO_NAME", name)
}
