package domain

import "encoding/json"

// DataType names one independently fetchable item of a request.
type DataType string

const (
	DataRepoInfo     DataType = "repo_info"
	DataContributors DataType = "contributors"
	DataIcon         DataType = "icon"
	DataCommits      DataType = "commits"
	DataBranches     DataType = "branches"
	DataFiles        DataType = "files"
	DataStats        DataType = "stats"
	DataFileContent  DataType = "file_content"
	DataExploration  DataType = "exploration"
)

// InsightRequest is the body of a POST /api/gitscope call.
type InsightRequest struct {
	Owner             string          `json:"owner"`
	Repo              string          `json:"repo"`
	Data              []DataType      `json:"data"`
	FilePath          string          `json:"filePath,omitempty"`
	ExplorationMode   ExplorationMode `json:"explorationMode,omitempty"`
	ExplorationPrompt string          `json:"explorationPrompt,omitempty"`
	CloneOptions      *CloneOptions   `json:"cloneOptions,omitempty"`
	UseCache          *bool           `json:"useCache,omitempty"`
}

// Key returns the repository the request targets.
func (r InsightRequest) Key() RepoKey {
	return RepoKey{Owner: r.Owner, Name: r.Repo}
}

// CacheAllowed reports whether cached data may satisfy this request.
// Cache use is the default; it is skipped only when explicitly disabled.
func (r InsightRequest) CacheAllowed() bool {
	return r.UseCache == nil || *r.UseCache
}

// InsightResponse carries one optional field per requested item.
type InsightResponse struct {
	Repo         *RepoInfo        `json:"repo,omitempty"`
	Contributors []Contributor    `json:"contributors,omitempty"`
	Icon         string           `json:"icon,omitempty"`
	Commits      string           `json:"commits,omitempty"`
	Branches     []Branch         `json:"branches,omitempty"`
	Files        []KeyFile        `json:"files,omitempty"`
	Stats        *RepoStats       `json:"stats,omitempty"`
	FileContent  *FileContent     `json:"fileContent,omitempty"`
	Exploration  *ExplorationView `json:"exploration,omitempty"`
	Error        string           `json:"error,omitempty"`
}

// ExplorationView is the exploration field of a response: either a payload
// or an error, never both.
type ExplorationView struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// RepoInfo is the subset of repository metadata the API surfaces.
type RepoInfo struct {
	FullName      string `json:"full_name"`
	Description   string `json:"description"`
	DefaultBranch string `json:"default_branch"`
	Language      string `json:"language"`
	Stars         int    `json:"stargazers_count"`
	Forks         int    `json:"forks_count"`
	OpenIssues    int    `json:"open_issues_count"`
	CreatedAt     string `json:"created_at"`
	PushedAt      string `json:"pushed_at"`
}

// Contributor is one repository contributor.
type Contributor struct {
	Login         string `json:"login"`
	AvatarURL     string `json:"avatar_url"`
	Contributions int    `json:"contributions"`
}

// Branch is one repository branch.
type Branch struct {
	Name      string `json:"name"`
	CommitSHA string `json:"commit_sha"`
}

// KeyFile is a well-known file found at the repository root.
type KeyFile struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Type string `json:"type"`
}

// FileContent is a fetched file body.
type FileContent struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
	Size     int    `json:"size"`
}

// RepoStats aggregates headline numbers about a repository.
type RepoStats struct {
	Stars        int     `json:"stars"`
	TotalIssues  int     `json:"totalIssues"`
	TotalCommits int     `json:"totalCommits"`
	AgeInYears   float64 `json:"ageInYears"`
}

// Snapshot aggregates the cheap API results for a repository, stored as the
// short-circuit cache for whole requests. Independent of exploration records.
type Snapshot struct {
	Repo         *RepoInfo     `json:"repo,omitempty"`
	Contributors []Contributor `json:"contributors,omitempty"`
	Files        []KeyFile     `json:"files,omitempty"`
	Stats        *RepoStats    `json:"stats,omitempty"`
	Icon         string        `json:"icon,omitempty"`
	Owner        string        `json:"owner"`
	Name         string        `json:"name"`
	StoredAt     string        `json:"stored_at"`
	TimestampMS  int64         `json:"timestamp"`
}
