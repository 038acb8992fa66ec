// Package artifact implements the ArtifactStore port. Listing goes through
// the go-github Actions API; uploads speak the Actions artifact v4 exchange
// (twirp CreateArtifact → blob PUT → FinalizeArtifact) using the runner's
// ACTIONS_RUNTIME_TOKEN and ACTIONS_RESULTS_URL.
package artifact

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	gh "github.com/google/go-github/v82/github"

	"github.com/ericfisherdev/stagegate/internal/domain/model"
	"github.com/ericfisherdev/stagegate/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ArtifactStore = (*Store)(nil)

const apiVersion = "github.actions.results.api.v1.ArtifactService"

// Store implements the driven.ArtifactStore port for a single repository.
type Store struct {
	gh           *gh.Client
	owner        string
	repo         string
	runtimeToken string
	resultsURL   string
	httpClient   *http.Client
}

// NewStore creates a Store. runtimeToken and resultsURL come from the
// runner environment (ACTIONS_RUNTIME_TOKEN, ACTIONS_RESULTS_URL) and are
// only needed for Upload; listing works with the API client alone.
func NewStore(client *gh.Client, owner, repo, runtimeToken, resultsURL string) *Store {
	return &Store{
		gh:           client,
		owner:        owner,
		repo:         repo,
		runtimeToken: runtimeToken,
		resultsURL:   resultsURL,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
	}
}

// ListRunArtifacts lists artifacts attached to one workflow run.
func (s *Store) ListRunArtifacts(ctx context.Context, runID int64) ([]model.Artifact, error) {
	opts := &gh.ListOptions{PerPage: 100}

	var all []model.Artifact

	for {
		list, resp, err := s.gh.Actions.ListWorkflowRunArtifacts(ctx, s.owner, s.repo, runID, opts)
		if err != nil {
			return nil, fmt.Errorf("listing artifacts for run %d (page %d): %w", runID, opts.Page, err)
		}

		for _, a := range list.Artifacts {
			all = append(all, mapArtifact(a))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// ListRepositoryArtifacts lists artifacts across all workflow runs.
func (s *Store) ListRepositoryArtifacts(ctx context.Context) ([]model.Artifact, error) {
	opts := &gh.ListArtifactsOptions{
		ListOptions: gh.ListOptions{PerPage: 100},
	}

	var all []model.Artifact

	for {
		list, resp, err := s.gh.Actions.ListArtifacts(ctx, s.owner, s.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("listing repository artifacts (page %d): %w", opts.Page, err)
		}

		for _, a := range list.Artifacts {
			all = append(all, mapArtifact(a))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// mapArtifact converts a go-github Artifact to the domain type.
func mapArtifact(a *gh.Artifact) model.Artifact {
	return model.Artifact{
		ID:        a.GetID(),
		Name:      a.GetName(),
		RunID:     a.GetWorkflowRun().GetID(),
		CreatedAt: a.GetCreatedAt().Time,
	}
}

// createArtifactRequest is the twirp CreateArtifact body.
type createArtifactRequest struct {
	WorkflowRunBackendID    string `json:"workflow_run_backend_id"`
	WorkflowJobRunBackendID string `json:"workflow_job_run_backend_id"`
	Name                    string `json:"name"`
	Version                 int    `json:"version"`
	ExpiresAt               string `json:"expires_at,omitempty"`
}

type createArtifactResponse struct {
	OK              bool   `json:"ok"`
	SignedUploadURL string `json:"signed_upload_url"`
}

// finalizeArtifactRequest is the twirp FinalizeArtifact body.
type finalizeArtifactRequest struct {
	WorkflowRunBackendID    string `json:"workflow_run_backend_id"`
	WorkflowJobRunBackendID string `json:"workflow_job_run_backend_id"`
	Name                    string `json:"name"`
	Size                    int64  `json:"size"`
}

// Upload publishes the file at path as a workflow artifact. The file is
// wrapped in a single-entry zip, as the artifact backend requires.
func (s *Store) Upload(ctx context.Context, name, path string, retentionDays int) error {
	if s.runtimeToken == "" || s.resultsURL == "" {
		return fmt.Errorf("artifact upload unavailable: runner environment missing ACTIONS_RUNTIME_TOKEN or ACTIONS_RESULTS_URL")
	}

	runBackendID, jobBackendID, err := backendIDsFromToken(s.runtimeToken)
	if err != nil {
		return fmt.Errorf("extracting backend ids: %w", err)
	}

	blob, err := zipFile(path)
	if err != nil {
		return err
	}

	create := createArtifactRequest{
		WorkflowRunBackendID:    runBackendID,
		WorkflowJobRunBackendID: jobBackendID,
		Name:                    name,
		Version:                 4,
	}
	if retentionDays > 0 {
		create.ExpiresAt = time.Now().UTC().AddDate(0, 0, retentionDays).Format(time.RFC3339)
	}

	var created createArtifactResponse
	if err := s.twirp(ctx, "CreateArtifact", create, &created); err != nil {
		return err
	}
	if !created.OK || created.SignedUploadURL == "" {
		return fmt.Errorf("artifact service refused creation of %q", name)
	}

	if err := s.putBlob(ctx, created.SignedUploadURL, blob); err != nil {
		return fmt.Errorf("uploading artifact blob for %q: %w", name, err)
	}

	finalize := finalizeArtifactRequest{
		WorkflowRunBackendID:    runBackendID,
		WorkflowJobRunBackendID: jobBackendID,
		Name:                    name,
		Size:                    int64(len(blob)),
	}
	if err := s.twirp(ctx, "FinalizeArtifact", finalize, nil); err != nil {
		return err
	}

	return nil
}

// twirp posts a JSON body to one ArtifactService method.
func (s *Store) twirp(ctx context.Context, method string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", method, err)
	}

	endpoint := strings.TrimSuffix(s.resultsURL, "/") + "/twirp/" + apiVersion + "/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.runtimeToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", method, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s returned %d: %s", method, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", method, err)
	}
	return nil
}

// putBlob uploads the zipped content to the signed blob URL.
func (s *Store) putBlob(ctx context.Context, signedURL string, blob []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, signedURL, bytes.NewReader(blob))
	if err != nil {
		return err
	}
	req.Header.Set("x-ms-blob-type", "BlockBlob")
	req.Header.Set("Content-Type", "application/zip")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("blob upload returned %d", resp.StatusCode)
	}
	return nil
}

// zipFile wraps the file at path into a single-entry zip archive.
func zipFile(path string) ([]byte, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	entry, err := zw.Create(filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("creating zip entry: %w", err)
	}
	if _, err := entry.Write(content); err != nil {
		return nil, fmt.Errorf("writing zip entry: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("closing zip: %w", err)
	}
	return buf.Bytes(), nil
}

// scopePattern matches the Actions.Results scope inside the runtime token,
// which carries the backend ids the artifact service keys on.
var scopePattern = regexp.MustCompile(`Actions\.Results:([0-9a-f-]+):([0-9a-f-]+)`)

// backendIDsFromToken extracts the workflow-run and job-run backend ids from
// the runtime token's scope claim. The token is a JWT; only the payload is
// inspected, no signature verification happens here.
func backendIDsFromToken(token string) (string, string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", "", fmt.Errorf("runtime token is not a JWT")
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", "", fmt.Errorf("decoding runtime token payload: %w", err)
	}

	m := scopePattern.FindSubmatch(payload)
	if m == nil {
		return "", "", fmt.Errorf("runtime token carries no Actions.Results scope")
	}
	return string(m[1]), string(m[2]), nil
}
