package repository

import (
	"context"
	"testing"

	"github.com/HefnerLance/bubble-mongo-linker/pkg/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedBusinesses(t *testing.T) BusinessRepository {
	t.Helper()
	h := testutil.NewMongoHelper(t)
	h.InsertMany(t, CollectionName,
		testutil.BusinessDoc("Acme Corp", "https://www.acme.com/", "+1 (555) 123-4567", "4711"),
		testutil.BusinessDoc("Not Acme", "https://notacme.com", "555 000 0000", int64(42)),
		testutil.BusinessDoc("Globex", "globex.io", "555.999.8888", nil),
		testutil.BusinessDoc("Globex East", "http://globex.io/east", "555.999.8888", nil),
	)
	return NewMongoBusinessRepository(h.Config())
}

func TestBusinessRepository_FindByLegacyID(t *testing.T) {
	repo := seedBusinesses(t)
	ctx := context.Background()

	hits, err := repo.FindByLegacyID(ctx, "4711", 2)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Acme Corp", hits[0].Name)
	assert.NotEmpty(t, hits[0].ID)

	hits, err = repo.FindByLegacyID(ctx, "42", 2)
	require.NoError(t, err)
	require.Len(t, hits, 1, "numeric legacy ids match documents storing a number")
	assert.Equal(t, "Not Acme", hits[0].Name)

	hits, err = repo.FindByLegacyID(ctx, "", 2)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestBusinessRepository_FindCandidates(t *testing.T) {
	repo := seedBusinesses(t)
	ctx := context.Background()

	hits, err := repo.FindCandidates(ctx, CandidateQuery{WebsiteHosts: []string{"acme.com", "www.acme.com"}, Name: "acme"}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Acme Corp", hits[0].Name)

	hits, err = repo.FindCandidates(ctx, CandidateQuery{WebsiteHosts: []string{"acme.com"}, PhoneSuffix: "1234567"}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	hits, err = repo.FindCandidates(ctx, CandidateQuery{WebsiteHosts: []string{"globex.io"}, PhoneSuffix: "9998888"}, 2)
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	hits, err = repo.FindCandidates(ctx, CandidateQuery{WebsiteHosts: []string{"acme.com"}}, 2)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
