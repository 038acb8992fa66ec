package application_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/stagegate/internal/application"
	"github.com/ericfisherdev/stagegate/internal/domain/model"
)

// in2025 returns a base input with the clock pinned inside 2025.
func in2025(stage model.ReleaseStage) application.NextVersionInput {
	return application.NextVersionInput{
		Stage: stage,
		Now:   time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
	}
}

func TestComputeNextVersion_Alpha(t *testing.T) {
	t.Run("continues iteration under unchanged year and revision", func(t *testing.T) {
		in := in2025(model.StageAlpha)
		in.LastProduction = "v2025.2"
		in.PreviousVersion = "v2025.3-alpha.2"

		got, err := application.ComputeNextVersion(in)
		require.NoError(t, err)
		assert.Equal(t, "v2025.3-alpha.3", got)
	})

	t.Run("two calls in the same year bump by exactly one each", func(t *testing.T) {
		in := in2025(model.StageAlpha)
		in.LastProduction = "v2025.2"
		in.PreviousVersion = "v2025.3-alpha.2"

		first, err := application.ComputeNextVersion(in)
		require.NoError(t, err)

		in.PreviousVersion = first
		second, err := application.ComputeNextVersion(in)
		require.NoError(t, err)

		assert.Equal(t, "v2025.3-alpha.3", first)
		assert.Equal(t, "v2025.3-alpha.4", second)
	})

	t.Run("starts at 1 after a production release bumped the revision", func(t *testing.T) {
		in := in2025(model.StageAlpha)
		in.LastProduction = "v2025.3"
		in.PreviousVersion = "v2025.3-alpha.9"

		got, err := application.ComputeNextVersion(in)
		require.NoError(t, err)
		assert.Equal(t, "v2025.4-alpha.1", got)
	})

	t.Run("starts at 1 with no previous alpha at all", func(t *testing.T) {
		in := in2025(model.StageAlpha)
		in.LastProduction = "v2025.2"

		got, err := application.ComputeNextVersion(in)
		require.NoError(t, err)
		assert.Equal(t, "v2025.3-alpha.1", got)
	})

	t.Run("year spike resets revision to 1", func(t *testing.T) {
		in := in2025(model.StageAlpha)
		in.LastProduction = "v2024.7"
		in.PreviousVersion = "v2024.8-alpha.3"

		got, err := application.ComputeNextVersion(in)
		require.NoError(t, err)
		assert.Equal(t, "v2025.1-alpha.1", got)
	})

	t.Run("no production history starts the year at revision 1", func(t *testing.T) {
		in := in2025(model.StageAlpha)

		got, err := application.ComputeNextVersion(in)
		require.NoError(t, err)
		assert.Equal(t, "v2025.1-alpha.1", got)
	})
}

func TestComputeNextVersion_Beta(t *testing.T) {
	t.Run("substitutes beta for alpha preserving numeric parts", func(t *testing.T) {
		in := in2025(model.StageBeta)
		in.LastProduction = "v2025.2"
		in.PreviousVersion = "v2025.3-alpha.2"

		got, err := application.ComputeNextVersion(in)
		require.NoError(t, err)
		assert.Equal(t, "v2025.3-beta.2", got)
	})

	t.Run("explicit reference overrides the fallback alpha", func(t *testing.T) {
		in := in2025(model.StageBeta)
		in.PreviousVersion = "v2025.3-alpha.5"
		in.Reference = "v2025.3-alpha.2"

		got, err := application.ComputeNextVersion(in)
		require.NoError(t, err)
		assert.Equal(t, "v2025.3-beta.2", got)
	})

	t.Run("missing alpha base fails with invalid_input", func(t *testing.T) {
		in := in2025(model.StageBeta)

		_, err := application.ComputeNextVersion(in)
		require.Error(t, err)
		assert.Equal(t, model.ErrKindInvalidInput, model.Kind(err))
		assert.Contains(t, err.Error(), "no previous alpha release")
	})

	t.Run("malformed alpha base fails with version_format naming the tag", func(t *testing.T) {
		in := in2025(model.StageBeta)
		in.PreviousVersion = "v2025.3-beta.2" // a beta cannot seed a beta

		_, err := application.ComputeNextVersion(in)
		require.Error(t, err)
		assert.Equal(t, model.ErrKindVersionFormat, model.Kind(err))
		assert.Contains(t, err.Error(), "v2025.3-beta.2")
	})
}

func TestComputeNextVersion_BetaHotfix(t *testing.T) {
	t.Run("bumps the trailing fix component", func(t *testing.T) {
		in := in2025(model.StageBeta)
		in.Hotfix = true
		in.PreviousStageVersion = "v2025.3-beta.2"

		got, err := application.ComputeNextVersion(in)
		require.NoError(t, err)
		assert.Equal(t, "v2025.3-beta.2.1", got)
	})

	t.Run("increments an existing fix component", func(t *testing.T) {
		in := in2025(model.StageBeta)
		in.Hotfix = true
		in.PreviousStageVersion = "v2025.3.1-beta.2.4"

		got, err := application.ComputeNextVersion(in)
		require.NoError(t, err)
		assert.Equal(t, "v2025.3.1-beta.2.5", got)
	})

	t.Run("no previous beta fails with invalid_input", func(t *testing.T) {
		in := in2025(model.StageBeta)
		in.Hotfix = true

		_, err := application.ComputeNextVersion(in)
		require.Error(t, err)
		assert.Equal(t, model.ErrKindInvalidInput, model.Kind(err))
		assert.Contains(t, err.Error(), "no previous beta release")
	})

	t.Run("malformed previous beta fails with version_format", func(t *testing.T) {
		in := in2025(model.StageBeta)
		in.Hotfix = true
		in.PreviousStageVersion = "v2025.3-alpha.2"

		_, err := application.ComputeNextVersion(in)
		require.Error(t, err)
		assert.Equal(t, model.ErrKindVersionFormat, model.Kind(err))
		assert.Contains(t, err.Error(), "malformed previous beta release")
	})
}

func TestComputeNextVersion_Production(t *testing.T) {
	t.Run("bumps the revision within the year", func(t *testing.T) {
		in := in2025(model.StageProduction)
		in.LastProduction = "v2025.2"
		in.PreviousVersion = "v2025.2"

		got, err := application.ComputeNextVersion(in)
		require.NoError(t, err)
		assert.Equal(t, "v2025.3", got)
	})

	t.Run("first release of a new year resets to revision 1", func(t *testing.T) {
		in := in2025(model.StageProduction)
		in.LastProduction = "v2024.9"

		got, err := application.ComputeNextVersion(in)
		require.NoError(t, err)
		assert.Equal(t, "v2025.1", got)
	})

	t.Run("hotfix appends a patch under the prior year and revision", func(t *testing.T) {
		in := in2025(model.StageProduction)
		in.Hotfix = true
		in.LastProduction = "v2024.9"

		got, err := application.ComputeNextVersion(in)
		require.NoError(t, err)
		assert.Equal(t, "v2024.9.1", got)
	})

	t.Run("hotfix increments an existing patch", func(t *testing.T) {
		in := in2025(model.StageProduction)
		in.Hotfix = true
		in.LastProduction = "v2025.3.2"

		got, err := application.ComputeNextVersion(in)
		require.NoError(t, err)
		assert.Equal(t, "v2025.3.3", got)
	})
}
