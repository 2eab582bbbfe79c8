package gitinfo

import (
	"fmt"

	"github.com/go-git/go-git/v5"
)

// Repo implements domain.GitInfo using go-git. Paths inside a working tree
// resolve to the enclosing repository.
type Repo struct{}

func New() *Repo {
	return &Repo{}
}

func open(path string) (*git.Repository, error) {
	return git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
}

func (g *Repo) IsGitRepo(projectPath string) bool {
	_, err := open(projectPath)
	return err == nil
}

// CommitHash returns the full SHA-1 of HEAD.
func (g *Repo) CommitHash(projectPath string) (string, error) {
	repo, err := open(projectPath)
	if err != nil {
		return "", fmt.Errorf("opening git repo: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolving HEAD: %w", err)
	}
	return head.Hash().String(), nil
}
