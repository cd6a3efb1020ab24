package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opendogma/dogma/internal/command"
	"github.com/opendogma/dogma/internal/storage"
	"github.com/opendogma/dogma/internal/storage/memory"
)

func commitText(t *testing.T, s *memory.Store, project, repo string, base command.Revision, path, content string) storage.CommitResult {
	t.Helper()

	res, err := s.Commit(context.Background(), storage.CommitRequest{
		Project:      project,
		Repository:   repo,
		BaseRevision: base,
		Changes:      []command.Change{&command.UpsertText{Path: path, Content: content}},
		Normalize:    true,
	})
	require.NoError(t, err)

	return res
}

// Rolling repositories archive their oldest commits into a secondary tier
// once MinRetentionCommits is exceeded (spec.md §9). Archival must not
// disturb the absolute revision numbering: HEAD keeps climbing, every
// revision stays reachable through GetFile/History regardless of which
// tier holds it, and no later commit is assigned a revision number a
// pre-archival commit already used (spec.md §3, testable property 7).
func TestRollingRepositoryArchivePreservesRevisionNumbering(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	require.NoError(t, s.CreateProject(ctx, "foo", 0, command.Author{}))
	require.NoError(t, s.CreateRollingRepository(ctx, "foo", "bar", command.Revision{Major: 1},
		storage.RollingRetention{MinRetentionCommits: 2}))

	head := command.Revision{Major: 1}
	for i := 1; i <= 5; i++ {
		res := commitText(t, s, "foo", "bar", head, "/f.txt", string(rune('a'+i-1))+"\n")
		head = res.Revision
	}

	// 5 commits past the initial revision: HEAD must be 6, not rebased
	// down to however many commits the primary tier happens to retain.
	assert.Equal(t, command.Revision{Major: 6}, head)

	// Every revision number from 1 through HEAD is reachable, spanning
	// whichever tier (primary or archived secondary) actually holds it.
	for rev := int64(2); rev <= head.Major; rev++ {
		content, err := s.GetFile(ctx, "foo", "bar", command.Revision{Major: rev}, "/f.txt")
		require.NoErrorf(t, err, "revision %d should still be reachable after archival", rev)
		assert.Equal(t, string(rune('a'+rev-2))+"\n", string(content))
	}

	history, err := s.History(ctx, "foo", "bar", command.Revision{Major: 1}, head)
	require.NoError(t, err)
	require.Len(t, history, int(head.Major-1))

	for i, entry := range history {
		assert.Equal(t, int64(i)+2, entry.Revision.Major)
	}

	// The next commit must not reuse a revision number already assigned
	// to an archived commit.
	next := commitText(t, s, "foo", "bar", head, "/f.txt", "z\n")
	assert.Equal(t, command.Revision{Major: head.Major + 1}, next.Revision)

	for rev := int64(2); rev <= next.Revision.Major; rev++ {
		_, err := s.GetFile(ctx, "foo", "bar", command.Revision{Major: rev}, "/f.txt")
		require.NoErrorf(t, err, "revision %d should still be reachable after the next commit", rev)
	}
}
