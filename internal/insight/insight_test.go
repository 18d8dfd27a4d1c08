package insight

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexbi/cortexbi/internal/feedback"
)

type fakeSource struct {
	rated []feedback.RatedInteraction
}

func (f *fakeSource) RatedInteractions() ([]feedback.RatedInteraction, error) {
	return f.rated, nil
}

func TestTrainAndPredict(t *testing.T) {
	src := &fakeSource{rated: []feedback.RatedInteraction{
		{UserID: "maria", AnalysisType: "custom_kpis", Rating: 0},
		{UserID: "maria", AnalysisType: "custom_kpis", Rating: 0},
		{UserID: "maria", AnalysisType: "compare_periods", Rating: 5},
		{UserID: "joao", AnalysisType: "count_reasons", Rating: 0},
	}}

	model, err := Train(src)
	require.NoError(t, err)
	assert.Equal(t, 4, model.Samples)

	// rating 5 doubles the weight: 2.0 for one use ties 2x unrated uses,
	// ties break alphabetically
	got := model.Predict("maria")
	require.Len(t, got, 2)
	assert.Equal(t, "compare_periods", got[0].AnalysisType)
	assert.Equal(t, 2.0, got[0].Score)
	assert.Equal(t, "custom_kpis", got[1].AnalysisType)
	assert.Equal(t, 2.0, got[1].Score)
}

func TestPredictUnknownUserFallsBackToGlobal(t *testing.T) {
	src := &fakeSource{rated: []feedback.RatedInteraction{
		{UserID: "maria", AnalysisType: "custom_kpis", Rating: 0},
		{UserID: "joao", AnalysisType: "custom_kpis", Rating: 0},
		{UserID: "joao", AnalysisType: "segment_groups", Rating: 2},
	}}
	model, err := Train(src)
	require.NoError(t, err)

	got := model.Predict("nobody")
	require.Len(t, got, 2)
	assert.Equal(t, "custom_kpis", got[0].AnalysisType)
	assert.Equal(t, 2.0, got[0].Score)
	// low rating halves the weight
	assert.Equal(t, 0.5, got[1].Score)
}

func TestTrainEmptyStore(t *testing.T) {
	model, err := Train(&fakeSource{})
	require.NoError(t, err)
	assert.Equal(t, 0, model.Samples)
	assert.Empty(t, model.Predict("anyone"))
}

func TestSaveAndLoad(t *testing.T) {
	src := &fakeSource{rated: []feedback.RatedInteraction{
		{UserID: "maria", AnalysisType: "custom_kpis", Rating: 4},
	}}
	model, err := Train(src)
	require.NoError(t, err)

	dir := t.TempDir() + "/models"
	require.NoError(t, model.Save(dir))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, model.Samples, loaded.Samples)
	assert.Equal(t, model.Predict("maria"), loaded.Predict("maria"))
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(t.TempDir())
	assert.Error(t, err)
}
