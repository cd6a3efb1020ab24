// Package memory is a reference Storage (C2) implementation backed by
// process memory, used by the executor/replicator test suites in place of
// the real Git-backed store (spec.md §1 treats the on-disk store as an
// opaque capability), and by bootstrap.Build as the process's Storage in
// every replication mode. Nothing it holds survives a restart.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/opendogma/dogma/common"
	"github.com/opendogma/dogma/internal/command"
	"github.com/opendogma/dogma/internal/storage"
)

// Transformer resolves a ContentTransformer by name for Store.ApplyTransform.
// The real transform registry lives in the storage layer and is out of
// scope (spec.md §1); this reference store lets tests register simple
// functions directly.
type Transformer func(tree map[string][]byte) ([]command.Change, error)

type tree map[string][]byte

func (t tree) clone() tree {
	out := make(tree, len(t))
	for k, v := range t {
		cp := make([]byte, len(v))
		copy(cp, v)
		out[k] = cp
	}

	return out
}

type repoState struct {
	removed   bool
	retention *storage.RollingRetention
	// base is the absolute revision number one below whatever
	// snapshots[0]/entries[0] hold: local index i always holds absolute
	// revision base+i+1, for every i in range. A fresh primary tier
	// starts with one entry standing for revision 1 (the repository's
	// initial empty state), so base starts at 0. Archiving moves the
	// oldest local entries into the secondary tier and advances base by
	// however many were moved, so head()/treeAt()/entryAt() keep
	// reporting the true absolute revision instead of one derived from
	// the post-archival array length — revision numbers must stay
	// dense/monotonic across the primary/secondary split (spec.md §3,
	// §9) and must never be recovered by indexing the raw array without
	// going through base.
	snapshots []tree
	entries   []storage.Entry
	base      int64
	secondary *repoState
	wdek      command.WdekDetails
	status    command.ReplicationStatus
}

func newRepoState() *repoState {
	return &repoState{
		snapshots: []tree{{}},
		entries:   []storage.Entry{{Revision: command.Revision{Major: 1}}},
	}
}

func (r *repoState) head() command.Revision {
	return command.Revision{Major: r.base + int64(len(r.snapshots))}
}

func (r *repoState) treeAt(rev int64) (tree, bool) {
	idx := rev - r.base - 1
	if idx >= 0 && idx < int64(len(r.snapshots)) {
		return r.snapshots[idx], true
	}

	if r.secondary != nil {
		return r.secondary.treeAt(rev)
	}

	return nil, false
}

// project groups repositories plus their removed flag so CreateProject can
// enforce parent-exists / already-removed invariants (spec.md §4.2).
type project struct {
	removed bool
	repos   map[string]*repoState
}

// Store is a Storage (C2) implementation entirely in memory.
type Store struct {
	mu           sync.Mutex
	projects     map[string]*project
	transformers map[string]Transformer
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		projects:     make(map[string]*project),
		transformers: make(map[string]Transformer),
	}
}

// RegisterTransform installs a named Transformer for ApplyTransform.
func (s *Store) RegisterTransform(name string, fn Transformer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transformers[name] = fn
}

func (s *Store) project(name string) (*project, error) {
	p, ok := s.projects[name]
	if !ok {
		return nil, common.NewNotFoundError("project " + name)
	}

	if p.removed {
		return nil, common.NewNotFoundError("project " + name)
	}

	return p, nil
}

func (s *Store) repo(projectName, repoName string) (*repoState, error) {
	p, err := s.project(projectName)
	if err != nil {
		return nil, err
	}

	r, ok := p.repos[repoName]
	if !ok || r.removed {
		return nil, common.NewNotFoundError("repository " + projectName + "/" + repoName)
	}

	return r, nil
}

// --- project lifecycle ------------------------------------------------

func (s *Store) CreateProject(_ context.Context, name string, _ int64, _ command.Author) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.projects[name]; ok && !p.removed {
		return common.NewExistsError("project " + name)
	}

	s.projects[name] = &project{repos: make(map[string]*repoState)}

	return nil
}

func (s *Store) RemoveProject(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[name]
	if !ok {
		return common.NewNotFoundError("project " + name)
	}

	if p.removed {
		return common.NewAlreadyRemovedError("project " + name)
	}

	p.removed = true
	for _, r := range p.repos {
		r.removed = true
	}

	return nil
}

func (s *Store) UnremoveProject(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[name]
	if !ok {
		return common.NewNotFoundError("project " + name)
	}

	p.removed = false

	return nil
}

func (s *Store) PurgeProject(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[name]
	if !ok {
		return common.NewNotFoundError("project " + name)
	}

	if !p.removed {
		return common.NewStillReferencedError("project " + name)
	}

	delete(s.projects, name)

	return nil
}

// --- repository lifecycle ----------------------------------------------

func (s *Store) CreateRepository(_ context.Context, projectName, repoName string, _ int64, _ command.Author) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.project(projectName)
	if err != nil {
		return common.NewNotFoundError("project " + projectName)
	}

	if r, ok := p.repos[repoName]; ok && !r.removed {
		return common.NewExistsError("repository " + projectName + "/" + repoName)
	}

	p.repos[repoName] = newRepoState()

	return nil
}

func (s *Store) CreateRollingRepository(_ context.Context, projectName, repoName string, initial command.Revision, retention storage.RollingRetention) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if retention.MinRetentionCommits < 0 || retention.MinRetentionDays < 0 {
		return common.NewInvalidCommandError("retention must be non-negative")
	}

	p, err := s.project(projectName)
	if err != nil {
		return common.NewNotFoundError("project " + projectName)
	}

	if r, ok := p.repos[repoName]; ok && !r.removed {
		return common.NewExistsError("repository " + projectName + "/" + repoName)
	}

	r := newRepoState()
	r.retention = &retention
	_ = initial // primary tier always starts fresh; initial revision is informational

	p.repos[repoName] = r

	return nil
}

func (s *Store) removeOrUnremove(_ context.Context, projectName, repoName string, removed bool, requireState bool, errIfMismatch error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.project(projectName)
	if err != nil {
		return err
	}

	r, ok := p.repos[repoName]
	if !ok {
		return common.NewNotFoundError("repository " + projectName + "/" + repoName)
	}

	if requireState && r.removed == removed {
		return errIfMismatch
	}

	r.removed = removed

	return nil
}

func (s *Store) RemoveRepository(ctx context.Context, projectName, repoName string) error {
	return s.removeOrUnremove(ctx, projectName, repoName, true, true,
		common.NewAlreadyRemovedError("repository "+projectName+"/"+repoName))
}

func (s *Store) UnremoveRepository(ctx context.Context, projectName, repoName string) error {
	return s.removeOrUnremove(ctx, projectName, repoName, false, false, nil)
}

func (s *Store) PurgeRepository(_ context.Context, projectName, repoName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.project(projectName)
	if err != nil {
		return err
	}

	r, ok := p.repos[repoName]
	if !ok {
		return common.NewNotFoundError("repository " + projectName + "/" + repoName)
	}

	if !r.removed {
		return common.NewStillReferencedError("repository " + projectName + "/" + repoName)
	}

	delete(p.repos, repoName)

	return nil
}

// --- revisions -----------------------------------------------------------

func (s *Store) NormalizeRevision(_ context.Context, projectName, repoName string, rev command.Revision) (command.Revision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.repo(projectName, repoName)
	if err != nil {
		return command.Revision{}, err
	}

	return normalize(r, rev)
}

func normalize(r *repoState, rev command.Revision) (command.Revision, error) {
	head := r.head().Major

	abs := rev.Major
	if rev.IsRelative() {
		abs = head + rev.Major
	}

	if abs < 1 || abs > head {
		return command.Revision{}, common.NewNotFoundError("revision")
	}

	return command.Revision{Major: abs}, nil
}

// --- mutation --------------------------------------------------------

func applyChange(t tree, ch command.Change) error {
	switch c := ch.(type) {
	case *command.UpsertJSON:
		t[c.Path] = append([]byte(nil), c.Content...)
	case *command.UpsertYAML:
		t[c.Path] = []byte(c.Content)
	case *command.UpsertText:
		sanitized := *c
		sanitized.Sanitize()
		t[c.Path] = []byte(sanitized.Content)
	case *command.Remove:
		removed := false

		for path := range t {
			if path == c.Path || strings.HasPrefix(path, c.Path+"/") {
				delete(t, path)
				removed = true
			}
		}

		if !removed {
			return common.NewNotFoundError("path " + c.Path)
		}
	case *command.Rename:
		for path := range t {
			if path == c.NewPath || strings.HasPrefix(path, c.NewPath+"/") {
				return common.NewExistsError("path " + c.NewPath)
			}
		}

		moved := false

		for path, content := range t {
			if path == c.Path {
				t[c.NewPath] = content
				delete(t, path)
				moved = true
			} else if strings.HasPrefix(path, c.Path+"/") {
				t[c.NewPath+strings.TrimPrefix(path, c.Path)] = content
				delete(t, path)
				moved = true
			}
		}

		if !moved {
			return common.NewNotFoundError("path " + c.Path)
		}
	case *command.ApplyJSONPatch:
		// A reference store has no JSON-patch engine wired in; treat the
		// patch payload as the resulting document, which is enough to
		// exercise the Command→Storage plumbing in tests.
		t[c.Path] = append([]byte(nil), c.Patch...)
	case *command.ApplyTextPatch:
		t[c.Path] = []byte(c.UnifiedDiff)
	default:
		return common.NewInvalidChangeError("unsupported change type " + ch.ChangeType())
	}

	return nil
}

func touchedPaths(changes []command.Change) map[string]struct{} {
	paths := make(map[string]struct{}, len(changes))
	for _, c := range changes {
		paths[c.ChangePath()] = struct{}{}

		if r, ok := c.(*command.Rename); ok {
			paths[r.NewPath] = struct{}{}
		}
	}

	return paths
}

// conflicts reports whether any change in changes touches a path modified
// by a commit after baseRev (exclusive) up to head (inclusive) — the
// "normalization" conflict check for NormalizingPush (spec.md §3).
func conflicts(r *repoState, baseRev int64, changes []command.Change) bool {
	touched := touchedPaths(changes)

	// baseRev is an absolute revision; entryAt resolves each later
	// revision in whichever tier holds it, so commits already archived
	// into secondary are checked as well.
	for rev := baseRev + 1; rev <= r.head().Major; rev++ {
		entry, ok := entryAt(r, rev)
		if !ok {
			continue
		}

		for _, c := range entry.Changes {
			if _, ok := touched[c.ChangePath()]; ok {
				return true
			}
		}
	}

	return false
}

func treesEqual(a, b tree) bool {
	if len(a) != len(b) {
		return false
	}

	for k, v := range a {
		bv, ok := b[k]
		if !ok || string(v) != string(bv) {
			return false
		}
	}

	return true
}

func (s *Store) Commit(_ context.Context, req storage.CommitRequest) (storage.CommitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.repo(req.Project, req.Repository)
	if err != nil {
		return storage.CommitResult{}, err
	}

	head := r.head().Major

	base := req.BaseRevision.Major
	if req.BaseRevision.IsRelative() {
		base = head + req.BaseRevision.Major
	}

	if base < 1 || base > head {
		return storage.CommitResult{}, common.NewNotFoundError("revision")
	}

	if base != head {
		if !req.Normalize {
			return storage.CommitResult{}, common.NewConflictError("repository " + req.Project + "/" + req.Repository)
		}

		if conflicts(r, base, req.Changes) {
			return storage.CommitResult{}, common.NewConflictError("repository " + req.Project + "/" + req.Repository)
		}
	}

	localHead := head - r.base - 1

	newTree := r.snapshots[localHead].clone()

	for _, c := range req.Changes {
		if err := applyChange(newTree, c); err != nil {
			return storage.CommitResult{}, err
		}
	}

	if treesEqual(newTree, r.snapshots[localHead]) {
		return storage.CommitResult{Revision: r.head(), Changes: nil, Redundant: true}, nil
	}

	r.snapshots = append(r.snapshots, newTree)
	r.entries = append(r.entries, storage.Entry{
		Revision:  r.head(),
		Author:    req.Author,
		Timestamp: req.Timestamp,
		Summary:   req.Summary,
		Changes:   req.Changes,
	})

	s.maybeArchive(r)

	return storage.CommitResult{Revision: r.head(), Changes: req.Changes}, nil
}

// maybeArchive moves the oldest entries of a rolling repository into its
// secondary tier once the primary tier exceeds MinRetentionCommits
// (spec.md §9 Rolling repository). Day-based retention is not modeled
// here since the reference store has no wall clock of its own:
// RollingRetention.MinRetentionDays is ignored.
//
// Archived commits keep their original absolute revision numbers: moving
// them out of the primary tier's array bumps r.base by the number of
// entries archived, so head()/treeAt()/entryAt() (all of which subtract
// r.base before indexing) keep reporting the true absolute revision
// instead of one derived from the post-archival array length. Without
// this, the primary tier's reported HEAD would drop and the next commit
// would be assigned a revision number a pre-archival commit already used
// (spec.md §3's dense/monotonic/non-reused revision invariant).
//
// The secondary tier starts completely empty rather than with the
// synthetic "revision 1" entry newRepoState gives a fresh primary: the
// first entry ever archived into it is the primary's own revision-1
// entry, so with the secondary's base left at 0 the base+index+1
// convention maps its local index i to absolute revision i+1.
func (s *Store) maybeArchive(r *repoState) {
	if r.retention == nil || r.retention.MinRetentionCommits <= 0 {
		return
	}

	keep := r.retention.MinRetentionCommits
	total := int64(len(r.entries))

	if total <= keep {
		return
	}

	if r.secondary == nil {
		r.secondary = &repoState{}
	}

	archiveCount := total - keep
	for i := int64(0); i < archiveCount; i++ {
		r.secondary.snapshots = append(r.secondary.snapshots, r.snapshots[i])
		r.secondary.entries = append(r.secondary.entries, r.entries[i])
	}

	r.snapshots = r.snapshots[archiveCount:]
	r.entries = r.entries[archiveCount:]
	r.base += archiveCount
}

func (s *Store) PreviewDiff(_ context.Context, projectName, repoName string, base command.Revision, changes []command.Change) ([]command.Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.repo(projectName, repoName)
	if err != nil {
		return nil, err
	}

	abs, err := normalize(r, base)
	if err != nil {
		return nil, err
	}

	_ = abs

	return changes, nil
}

func (s *Store) ApplyTransform(_ context.Context, req storage.TransformRequest) (storage.CommitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.repo(req.Project, req.Repository)
	if err != nil {
		return storage.CommitResult{}, err
	}

	fn, ok := s.transformers[req.Transformer.Name]
	if !ok {
		return storage.CommitResult{}, common.NewNotFoundError("transformer " + req.Transformer.Name)
	}

	head := r.head().Major

	base := req.BaseRevision.Major
	if req.BaseRevision.IsRelative() {
		base = head + req.BaseRevision.Major
	}

	if base != head {
		return storage.CommitResult{}, common.NewConflictError("repository " + req.Project + "/" + req.Repository)
	}

	localHead := head - r.base - 1

	changes, err := fn(r.snapshots[localHead].clone())
	if err != nil {
		return storage.CommitResult{}, err
	}

	newTree := r.snapshots[localHead].clone()
	for _, c := range changes {
		if err := applyChange(newTree, c); err != nil {
			return storage.CommitResult{}, err
		}
	}

	if treesEqual(newTree, r.snapshots[localHead]) {
		return storage.CommitResult{Revision: r.head(), Redundant: true}, nil
	}

	r.snapshots = append(r.snapshots, newTree)
	r.entries = append(r.entries, storage.Entry{
		Revision:  r.head(),
		Author:    req.Author,
		Timestamp: req.Timestamp,
		Summary:   req.Summary,
		Changes:   changes,
	})

	s.maybeArchive(r)

	return storage.CommitResult{Revision: r.head(), Changes: changes}, nil
}

func (s *Store) GetFile(_ context.Context, projectName, repoName string, rev command.Revision, path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.repo(projectName, repoName)
	if err != nil {
		return nil, err
	}

	abs, err := normalize(r, rev)
	if err != nil {
		return nil, err
	}

	t, ok := r.treeAt(abs.Major)
	if !ok {
		return nil, common.NewNotFoundError("revision")
	}

	content, ok := t[path]
	if !ok {
		return nil, common.NewNotFoundError("path " + path)
	}

	return content, nil
}

func (s *Store) History(_ context.Context, projectName, repoName string, from, to command.Revision) ([]storage.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.repo(projectName, repoName)
	if err != nil {
		return nil, err
	}

	fromAbs, err := normalize(r, from)
	if err != nil {
		return nil, err
	}

	toAbs, err := normalize(r, to)
	if err != nil {
		return nil, err
	}

	var out []storage.Entry

	for rev := fromAbs.Major + 1; rev <= toAbs.Major; rev++ {
		entry, ok := entryAt(r, rev)
		if !ok {
			return nil, common.NewNotFoundError("revision")
		}

		out = append(out, entry)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Revision.Major < out[j].Revision.Major })

	return out, nil
}

func entryAt(r *repoState, rev int64) (storage.Entry, bool) {
	idx := rev - r.base - 1
	if idx >= 0 && idx < int64(len(r.entries)) {
		return r.entries[idx], true
	}

	if r.secondary != nil {
		return entryAt(r.secondary, rev)
	}

	return storage.Entry{}, false
}

func (s *Store) RotateWdek(_ context.Context, projectName, repoName string, wdek command.WdekDetails) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.repo(projectName, repoName)
	if err != nil {
		return err
	}

	r.wdek = wdek

	return nil
}

func (s *Store) UpdateRepositoryStatus(_ context.Context, projectName, repoName string, status command.ReplicationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.repo(projectName, repoName)
	if err != nil {
		return err
	}

	r.status = status

	return nil
}

func (s *Store) GC(_ context.Context, projectName, repoName string) (command.Revision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.repo(projectName, repoName)
	if err != nil {
		return command.Revision{}, err
	}

	return r.head(), nil
}
