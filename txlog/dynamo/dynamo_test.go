package dynamo

import (
	"context"
	"strconv"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/otree/core"
	"github.com/hupe1980/otree/cube"
	"github.com/hupe1980/otree/index"
	"github.com/hupe1980/otree/space"
	"github.com/hupe1980/otree/txlog"
	"github.com/hupe1980/otree/weight"
)

// fakeClient emulates the conditional-write and query behavior the log
// relies on, keyed exactly like the real table.
type fakeClient struct {
	items map[string]map[int64]map[string]types.AttributeValue
}

func newFakeClient() *fakeClient {
	return &fakeClient{items: make(map[string]map[int64]map[string]types.AttributeValue)}
}

func (f *fakeClient) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	tid := params.Item["table_id"].(*types.AttributeValueMemberS).Value
	version, err := strconv.ParseInt(params.Item["version"].(*types.AttributeValueMemberN).Value, 10, 64)
	if err != nil {
		return nil, err
	}
	table, ok := f.items[tid]
	if !ok {
		table = make(map[int64]map[string]types.AttributeValue)
		f.items[tid] = table
	}
	if _, exists := table[version]; exists {
		return nil, &types.ConditionalCheckFailedException{}
	}
	table[version] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeClient) Query(_ context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	tid := params.ExpressionAttributeValues[":tid"].(*types.AttributeValueMemberS).Value
	after, err := strconv.ParseInt(params.ExpressionAttributeValues[":after"].(*types.AttributeValueMemberN).Value, 10, 64)
	if err != nil {
		return nil, err
	}
	var out dynamodb.QueryOutput
	table := f.items[tid]
	var versions []int64
	for v := range table {
		if v > after {
			versions = append(versions, v)
		}
	}
	for i := range versions {
		for j := i + 1; j < len(versions); j++ {
			if versions[j] < versions[i] {
				versions[i], versions[j] = versions[j], versions[i]
			}
		}
	}
	for _, v := range versions {
		out.Items = append(out.Items, table[v])
	}
	return &out, nil
}

func testRevision() index.Revision {
	return index.Revision{
		ID:              1,
		TableID:         "events",
		DesiredCubeSize: 10,
		Transformers: []space.Transformer{
			{Column: "x", Type: core.FieldTypeFloat},
			{Column: "y", Type: core.FieldTypeFloat},
		},
		Transformations: space.Transformations{
			space.Linear{Min: 0, Max: 1},
			space.Linear{Min: 0, Max: 1},
		},
	}
}

func testUpdate(t *testing.T, base int64, isNew bool) txlog.Update {
	t.Helper()
	root, err := cube.Root(2)
	require.NoError(t, err)

	u := txlog.Update{
		BaseVersion: base,
		Changes: index.TableChanges{
			IsNewRevision: isNew,
			Revision:      testRevision(),
			CubeWeights:   map[string]weight.NormalizedWeight{root.String(): 1},
		},
	}
	u.Finalize()
	return u
}

func TestLogCommitAndSnapshot(t *testing.T) {
	ctx := context.Background()
	log := NewLog(newFakeClient(), "otree-commits")

	require.NoError(t, log.Commit(ctx, "events", testUpdate(t, 0, true)))

	snap, err := log.Snapshot(ctx, "events")
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.Version)

	rev, ok := snap.LatestRevision()
	require.True(t, ok)
	assert.Equal(t, core.RevisionID(1), rev.ID)
}

func TestLogConflict(t *testing.T) {
	ctx := context.Background()
	log := NewLog(newFakeClient(), "otree-commits")

	require.NoError(t, log.Commit(ctx, "events", testUpdate(t, 0, true)))

	err := log.Commit(ctx, "events", testUpdate(t, 0, false))
	require.Error(t, err)

	var conflict *txlog.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, int64(1), conflict.HeadVersion)

	root, rerr := cube.Root(2)
	require.NoError(t, rerr)
	assert.True(t, conflict.Touched.Contains(root), "the winner's touched cubes are reported")
}

func TestLogSnapshotFoldsAllCommits(t *testing.T) {
	ctx := context.Background()
	log := NewLog(newFakeClient(), "otree-commits")

	require.NoError(t, log.Commit(ctx, "events", testUpdate(t, 0, true)))
	require.NoError(t, log.Commit(ctx, "events", testUpdate(t, 1, false)))
	require.NoError(t, log.Commit(ctx, "events", testUpdate(t, 2, false)))

	snap, err := log.Snapshot(ctx, "events")
	require.NoError(t, err)
	assert.Equal(t, int64(3), snap.Version)
	assert.Len(t, snap.Revisions, 1, "only the first commit minted a revision")
}

func TestLogEmptyTable(t *testing.T) {
	ctx := context.Background()
	log := NewLog(newFakeClient(), "otree-commits")

	snap, err := log.Snapshot(ctx, "events")
	require.NoError(t, err)
	assert.Equal(t, int64(0), snap.Version)
}
