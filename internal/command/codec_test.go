package command

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRoundTripAllVariants exercises testable property 1 (spec.md §8):
// decode(encode(c)) == c for every command variant.
func TestRoundTripAllVariants(t *testing.T) {
	author := Author{Name: "alice", Email: "alice@example.com"}

	variants := []Command{
		&CreateProject{Header: Header{Timestamp: 1, Author: author}, ProjectName: "foo"},
		&RemoveProject{Header: Header{Timestamp: 1, Author: author}, ProjectName: "foo"},
		&UnremoveProject{Header: Header{Timestamp: 1, Author: author}, ProjectName: "foo"},
		&PurgeProject{Header: Header{Timestamp: 1, Author: author}, ProjectName: "foo"},
		&ResetMetaRepository{Header: Header{Timestamp: 1, Author: author}, ProjectName: "foo"},
		&CreateRepository{Header: Header{Timestamp: 1, Author: author}, ProjectName: "foo", RepositoryName: "bar"},
		&RemoveRepository{Header: Header{Timestamp: 1, Author: author}, ProjectName: "foo", RepositoryName: "bar"},
		&UnremoveRepository{Header: Header{Timestamp: 1, Author: author}, ProjectName: "foo", RepositoryName: "bar"},
		&PurgeRepository{Header: Header{Timestamp: 1, Author: author}, ProjectName: "foo", RepositoryName: "bar"},
		&CreateRollingRepository{
			Header:          Header{Timestamp: 1, Author: author},
			ProjectName:     "foo",
			RepositoryName:  "bar",
			InitialRevision: Revision{Major: 1},
			Retention:       RollingRepositoryRetention{MinRetentionCommits: 100, MinRetentionDays: 30},
		},
		&RotateWdek{
			Header:         Header{Timestamp: 1, Author: author},
			ProjectName:    "foo",
			RepositoryName: "bar",
			Wdek:           WdekDetails{KeyID: "k1", WrappedKeyData: []byte{1, 2, 3}},
		},
		&UpdateRepositoryStatus{
			Header:            Header{Timestamp: 1, Author: author},
			ProjectName:       "foo",
			RepositoryName:    "bar",
			ReplicationStatus: ReplicationStatusStale,
		},
		&NormalizingPush{pushCommon{
			Header:         Header{Timestamp: 1, Author: author},
			ProjectName:    "foo",
			RepositoryName: "bar",
			BaseRevision:   Revision{Major: 1},
			Summary:        "s",
			Detail:         "d",
			Markup:         MarkupPlaintext,
			Changes: []Change{
				&UpsertText{Path: "/x.txt", Content: "hi\n"},
				&Remove{Path: "/y.txt"},
			},
		}},
		&PushAsIs{pushCommon{
			Header:         Header{Timestamp: 1, Author: author},
			ProjectName:    "foo",
			RepositoryName: "bar",
			BaseRevision:   Revision{Major: 1},
			Changes:        []Change{&Rename{Path: "/a", NewPath: "/b"}},
		}},
		&Transform{
			Header:         Header{Timestamp: 1, Author: author},
			ProjectName:    "foo",
			RepositoryName: "bar",
			BaseRevision:   Revision{Major: 1},
			Transformer:    ContentTransformer{Name: "uppercase"},
		},
		&CreateSession{
			Header:  Header{Timestamp: 1, Author: author},
			Session: Session{ID: "s1", Username: "alice", ExpirationTime: 9999},
		},
		&RemoveSession{Header: Header{Timestamp: 1, Author: author}, SessionID: "s1"},
		&CreateSessionMasterKey{
			Header:    Header{Timestamp: 1, Author: author},
			MasterKey: MasterKey{KeyID: "k1", Key: []byte{9, 9}},
		},
		&CreateToken{
			Header: Header{Timestamp: 1, Author: author},
			Token:  Token{AppID: "app1", Secret: "s3cr3t", IsSystemAdmin: true, Creation: 1},
		},
		&DeactivateToken{Header: Header{Timestamp: 1, Author: author}, AppID: "app1"},
		&DeleteToken{Header: Header{Timestamp: 1, Author: author}, AppID: "app1"},
		&UpdateServerStatus{Header: Header{Timestamp: 1, Author: author}, Writable: boolPtr(false)},
		&ForcePush{
			Header: Header{Timestamp: 1, Author: author},
			Inner:  &CreateProject{Header: Header{Timestamp: 1, Author: author}, ProjectName: "foo"},
		},
	}

	for _, want := range variants {
		t.Run(want.CommandType(), func(t *testing.T) {
			data, err := Encode(want)
			require.NoError(t, err)

			got, err := Decode(data)
			require.NoError(t, err)

			assert.Equal(t, want, got)
		})
	}
}

func TestDecodeUnrecognizedTypeIsHardError(t *testing.T) {
	_, err := Decode([]byte(`{"type":"NOT_A_REAL_COMMAND"}`))
	require.Error(t, err)

	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "NOT_A_REAL_COMMAND", de.Type)
}

func TestDecodeUnknownFieldsForwardCompatible(t *testing.T) {
	raw := []byte(`{"type":"CREATE_PROJECT","projectName":"foo","timestamp":1,
		"author":{"name":"a","email":"a@b"},"somethingFromTheFuture":true}`)

	got, err := Decode(raw)
	require.NoError(t, err)

	cp, ok := got.(*CreateProject)
	require.True(t, ok)
	assert.Equal(t, "foo", cp.ProjectName)
}

func TestDecodeMissingTimestampAndAuthorDefaultOnNormalize(t *testing.T) {
	raw := []byte(`{"type":"CREATE_PROJECT","projectName":"foo"}`)

	got, err := Decode(raw)
	require.NoError(t, err)

	h := got.CommandHeader()
	assert.Zero(t, h.Timestamp)
	assert.Zero(t, h.Author)

	fixed := time.UnixMilli(42)
	h.Normalize(func() time.Time { return fixed })
	assert.Equal(t, int64(42), h.Timestamp)
	assert.Equal(t, SystemAuthor, h.Author)
}

func TestNestedForcePushUnwrapIsIdempotent(t *testing.T) {
	inner := &RemoveProject{ProjectName: "foo"}
	once := &ForcePush{Inner: inner}
	twice := &ForcePush{Inner: once}

	assert.Equal(t, Command(inner), twice.Unwrap())
	assert.Equal(t, Command(inner), once.Unwrap())
}

func boolPtr(b bool) *bool { return &b }
