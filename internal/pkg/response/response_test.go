package response

import (
	"encoding/json"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalJSON(t *testing.T) {
	b, err := json.Marshal(Response{Count: 2, Results: []string{"a", "b"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"count":2,"previous":"","next":"","results":["a","b"],"detail":""}`, string(b))

	b, err = json.Marshal(Errorf("cluster %s not found", "hpc"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"count":0,"previous":"","next":"","results":null,"detail":"cluster hpc not found"}`, string(b))
}

func TestBuildPageLinks(t *testing.T) {
	base, err := url.Parse("/api/v1/hpc/slurm/availability/nodes?only_gpus=true&page=2&page_size=10")
	require.NoError(t, err)

	prev, next := BuildPageLinks(base, 2, 10, 35)
	assert.Equal(t, "/api/v1/hpc/slurm/availability/nodes?only_gpus=true&page=1&page_size=10&paging=true", prev.String())
	assert.Equal(t, "/api/v1/hpc/slurm/availability/nodes?only_gpus=true&page=3&page_size=10&paging=true", next.String())

	prev, next = BuildPageLinks(base, 1, 10, 5)
	assert.Empty(t, prev.String())
	assert.Empty(t, next.String())

	// 超出最后一页时上一页指向最后一页
	prev, _ = BuildPageLinks(base, 9, 10, 35)
	assert.Contains(t, prev.String(), "page=4")

	prev, next = BuildPageLinks(nil, 2, 10, 35)
	assert.Empty(t, prev.String())
	assert.Empty(t, next.String())
}
