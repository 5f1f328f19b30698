package webhook

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EventType classifies a parsed delivery.
type EventType string

const (
	EventPush        EventType = "push"
	EventPullRequest EventType = "pull_request"
	EventPipeline    EventType = "pipeline"
)

// Event is the provider-neutral core of every delivery.
type Event struct {
	Type       EventType `json:"type"`
	Provider   string    `json:"provider"`
	Repository string    `json:"repository"`
	Branch     string    `json:"branch"`
	Sender     string    `json:"sender"`
	CommitHash string    `json:"commit_hash"`
}

// Commit is one commit inside a push delivery.
type Commit struct {
	Hash     string   `json:"hash"`
	Message  string   `json:"message"`
	Author   string   `json:"author"`
	Added    []string `json:"added,omitempty"`
	Modified []string `json:"modified,omitempty"`
	Removed  []string `json:"removed,omitempty"`
}

// PushEvent is a normalized push delivery.
type PushEvent struct {
	Event
	Before    string   `json:"before"`
	After     string   `json:"after"`
	Forced    bool     `json:"forced,omitempty"`
	Commits   []Commit `json:"commits,omitempty"`
	FileCount int      `json:"file_count"`
}

// PullRequestEvent is a normalized pull/merge request delivery.
type PullRequestEvent struct {
	Event
	Action     string `json:"action"`
	Number     int    `json:"number"`
	Title      string `json:"title"`
	BaseBranch string `json:"base_branch"`
	HeadBranch string `json:"head_branch"`
	Draft      bool   `json:"draft,omitempty"`
}

// PipelineEvent is a normalized CI pipeline status delivery.
type PipelineEvent struct {
	Event
	PipelineID int    `json:"pipeline_id"`
	Status     string `json:"status"`
	Ref        string `json:"ref"`
}

// ParseGitHubPush normalizes a GitHub push payload.
func ParseGitHubPush(data []byte) (*PushEvent, error) {
	var raw struct {
		Ref        string `json:"ref"`
		Before     string `json:"before"`
		After      string `json:"after"`
		Forced     bool   `json:"forced"`
		Repository struct {
			FullName string `json:"full_name"`
		} `json:"repository"`
		Sender struct {
			Login string `json:"login"`
		} `json:"sender"`
		Commits []rawCommit `json:"commits"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse github push: %w", err)
	}

	ev := &PushEvent{
		Event: Event{
			Type:       EventPush,
			Provider:   "github",
			Repository: raw.Repository.FullName,
			Branch:     branchFromRef(raw.Ref),
			Sender:     raw.Sender.Login,
			CommitHash: raw.After,
		},
		Before: raw.Before,
		After:  raw.After,
		Forced: raw.Forced,
	}
	ev.Commits = convertCommits(raw.Commits)
	ev.FileCount = countFiles(ev.Commits)
	return ev, nil
}

// ParseGitLabPush normalizes a GitLab push payload.
func ParseGitLabPush(data []byte) (*PushEvent, error) {
	var raw struct {
		Ref     string `json:"ref"`
		Before  string `json:"before"`
		After   string `json:"after"`
		Project struct {
			PathWithNamespace string `json:"path_with_namespace"`
		} `json:"project"`
		UserUsername string      `json:"user_username"`
		Commits      []rawCommit `json:"commits"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse gitlab push: %w", err)
	}

	ev := &PushEvent{
		Event: Event{
			Type:       EventPush,
			Provider:   "gitlab",
			Repository: raw.Project.PathWithNamespace,
			Branch:     branchFromRef(raw.Ref),
			Sender:     raw.UserUsername,
			CommitHash: raw.After,
		},
		Before: raw.Before,
		After:  raw.After,
	}
	ev.Commits = convertCommits(raw.Commits)
	ev.FileCount = countFiles(ev.Commits)
	return ev, nil
}

// ParseGitHubPullRequest normalizes a GitHub pull_request payload.
func ParseGitHubPullRequest(data []byte) (*PullRequestEvent, error) {
	var raw struct {
		Action      string `json:"action"`
		PullRequest struct {
			Number int    `json:"number"`
			Title  string `json:"title"`
			Draft  bool   `json:"draft"`
			Head   struct {
				Ref string `json:"ref"`
				SHA string `json:"sha"`
			} `json:"head"`
			Base struct {
				Ref string `json:"ref"`
			} `json:"base"`
		} `json:"pull_request"`
		Repository struct {
			FullName string `json:"full_name"`
		} `json:"repository"`
		Sender struct {
			Login string `json:"login"`
		} `json:"sender"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse github pull_request: %w", err)
	}

	return &PullRequestEvent{
		Event: Event{
			Type:       EventPullRequest,
			Provider:   "github",
			Repository: raw.Repository.FullName,
			Branch:     raw.PullRequest.Head.Ref,
			Sender:     raw.Sender.Login,
			CommitHash: raw.PullRequest.Head.SHA,
		},
		Action:     raw.Action,
		Number:     raw.PullRequest.Number,
		Title:      raw.PullRequest.Title,
		BaseBranch: raw.PullRequest.Base.Ref,
		HeadBranch: raw.PullRequest.Head.Ref,
		Draft:      raw.PullRequest.Draft,
	}, nil
}

// ParseGitLabPipeline normalizes a GitLab pipeline status payload.
func ParseGitLabPipeline(data []byte) (*PipelineEvent, error) {
	var raw struct {
		ObjectAttributes struct {
			ID     int    `json:"id"`
			Status string `json:"status"`
			Ref    string `json:"ref"`
			SHA    string `json:"sha"`
		} `json:"object_attributes"`
		Project struct {
			PathWithNamespace string `json:"path_with_namespace"`
		} `json:"project"`
		User struct {
			Username string `json:"username"`
		} `json:"user"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse gitlab pipeline: %w", err)
	}

	return &PipelineEvent{
		Event: Event{
			Type:       EventPipeline,
			Provider:   "gitlab",
			Repository: raw.Project.PathWithNamespace,
			Branch:     raw.ObjectAttributes.Ref,
			Sender:     raw.User.Username,
			CommitHash: raw.ObjectAttributes.SHA,
		},
		PipelineID: raw.ObjectAttributes.ID,
		Status:     raw.ObjectAttributes.Status,
		Ref:        raw.ObjectAttributes.Ref,
	}, nil
}

type rawCommit struct {
	ID      string `json:"id"`
	Message string `json:"message"`
	Author  struct {
		Name string `json:"name"`
	} `json:"author"`
	Added    []string `json:"added"`
	Modified []string `json:"modified"`
	Removed  []string `json:"removed"`
}

func convertCommits(raw []rawCommit) []Commit {
	commits := make([]Commit, 0, len(raw))
	for _, c := range raw {
		commits = append(commits, Commit{
			Hash:     c.ID,
			Message:  c.Message,
			Author:   c.Author.Name,
			Added:    c.Added,
			Modified: c.Modified,
			Removed:  c.Removed,
		})
	}
	return commits
}

func branchFromRef(ref string) string {
	// refs/heads/main -> main, refs/heads/feature/foo -> feature/foo
	const prefix = "refs/heads/"
	return strings.TrimPrefix(ref, prefix)
}

func countFiles(commits []Commit) int {
	seen := make(map[string]struct{})
	for _, c := range commits {
		for _, f := range c.Added {
			seen[f] = struct{}{}
		}
		for _, f := range c.Modified {
			seen[f] = struct{}{}
		}
		for _, f := range c.Removed {
			seen[f] = struct{}{}
		}
	}
	return len(seen)
}
