package system_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arc-self/eventcore/system"
)

func TestParsePipelineExprTrimsAndValidates(t *testing.T) {
	names, err := system.ParsePipelineExpr(" A | B |C ")
	require.NoError(t, err)
	require.Equal(t, []string{"A", "B", "C"}, names)

	_, err = system.ParsePipelineExpr("A ||  B")
	require.Error(t, err)
}

func TestBuildGraphMergesExpressionsAndDedupsClasses(t *testing.T) {
	g, err := system.BuildGraph([]string{"A | B | C", "A | D"})
	require.NoError(t, err)

	require.Equal(t, []string{"A", "B", "C", "D"}, g.Classes)
	require.ElementsMatch(t, []string{"B", "D"}, g.DownstreamsOf("A"))
	require.ElementsMatch(t, []string{"A"}, g.UpstreamsOf("B"))
}

func TestBuildGraphAllowsSelfFollowAndCycles(t *testing.T) {
	g, err := system.BuildGraph([]string{"A | A", "A | B | A"})
	require.NoError(t, err)

	require.Contains(t, g.Classes, "A")
	require.Contains(t, g.Classes, "B")
	require.ElementsMatch(t, []string{"A"}, g.UpstreamsOf("A"))
	require.ElementsMatch(t, []string{"A"}, g.UpstreamsOf("B"))
}

func TestBuildGraphRejectsEmptyClassName(t *testing.T) {
	_, err := system.BuildGraph([]string{"A |  | B"})
	require.Error(t, err)
}
