package codec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseguard/caseguard/pkg/dimension"
	"github.com/caseguard/caseguard/pkg/risk"
	"github.com/caseguard/caseguard/pkg/routing"
	"github.com/caseguard/caseguard/pkg/usecase"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func buildContext(t *testing.T) *usecase.Context {
	t.Helper()
	ctx := usecase.New("de-aging pipeline", routing.DefaultTable(dimension.SchemaV2), nil,
		usecase.WithDescription("ML de-aging for flashback sequences"),
		usecase.WithPhase("post-production"),
		usecase.WithTags("vfx", "ml"),
		usecase.WithClock(func() time.Time { return t0 }),
	)
	ctx.FlagRisk(dimension.LegalIP, risk.LevelHigh, "likeness rights unresolved", "")
	custom := dimension.Dimension{Key: "CHAIN_OF_TITLE", Label: "Chain of Title"}
	ctx.FlagRisk(custom, risk.LevelMedium, "missing assignment docs", "Head of Business Affairs")
	require.NoError(t, ctx.AcceptRisk(1, "docs being recreated"))
	return ctx
}

func TestRoundTripIsLossless(t *testing.T) {
	ctx := buildContext(t)
	data, err := Encode(ctx)
	require.NoError(t, err)

	decoded, err := Decode(data, routing.DefaultTable(dimension.SchemaV2))
	require.NoError(t, err)

	assert.Equal(t, ctx.Name, decoded.Name)
	assert.Equal(t, ctx.Description, decoded.Description)
	assert.Equal(t, ctx.Phase, decoded.Phase)
	assert.Equal(t, ctx.Tags, decoded.Tags)
	assert.True(t, ctx.CreatedAt.Equal(decoded.CreatedAt))

	require.Len(t, decoded.Flags(), 2)
	for i, want := range ctx.Flags() {
		got := decoded.Flags()[i]
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, want.Dimension, got.Dimension)
		assert.Equal(t, want.Level, got.Level)
		assert.Equal(t, want.Status, got.Status)
		assert.Equal(t, want.Description, got.Description)
		assert.Equal(t, want.Reviewer, got.Reviewer)
		assert.Equal(t, want.Note, got.Note)
		assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
		assert.True(t, want.UpdatedAt.Equal(got.UpdatedAt))
	}
}

func TestCustomDimensionLabelTravels(t *testing.T) {
	ctx := buildContext(t)
	data, err := Encode(ctx)
	require.NoError(t, err)

	// the decoding side has never minted CHAIN_OF_TITLE
	decoded, err := Decode(data, routing.DefaultTable(dimension.SchemaV2))
	require.NoError(t, err)

	got := decoded.Flags()[1].Dimension
	assert.Equal(t, "CHAIN_OF_TITLE", got.Key)
	assert.Equal(t, "Chain of Title", got.Label)
}

func TestDecodeEmitsNoEvents(t *testing.T) {
	ctx := buildContext(t)
	data, err := Encode(ctx)
	require.NoError(t, err)

	// reconstruction must not re-announce historical flags
	decoded, err := Decode(data, routing.DefaultTable(dimension.SchemaV2))
	require.NoError(t, err)
	assert.Nil(t, decoded.Dispatcher())
	require.Len(t, decoded.Flags(), 2)
}

func TestDecodeRejectsMalformedDocuments(t *testing.T) {
	table := routing.DefaultTable(dimension.SchemaV2)
	cases := []struct {
		name string
		data string
	}{
		{"not json", `{{`},
		{"missing name", `{"created_at":"2025-03-01T12:00:00Z","flags":[]}`},
		{"empty name", `{"name":"","created_at":"2025-03-01T12:00:00Z","flags":[]}`},
		{"flags not array", `{"name":"x","created_at":"2025-03-01T12:00:00Z","flags":{}}`},
		{"flag missing dimension", `{"name":"x","created_at":"2025-03-01T12:00:00Z","flags":[{"level":"LOW","status":"OPEN","description":"d","created_at":"2025-03-01T12:00:00Z","updated_at":"2025-03-01T12:00:00Z"}]}`},
		{"dimension missing key", `{"name":"x","created_at":"2025-03-01T12:00:00Z","flags":[{"dimension":{"label":"L"},"level":"LOW","status":"OPEN","description":"d","created_at":"2025-03-01T12:00:00Z","updated_at":"2025-03-01T12:00:00Z"}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode([]byte(tc.data), table)
			var serr *SerializationError
			require.ErrorAs(t, err, &serr)
		})
	}
}

func TestDecodeRejectsUnknownLevelAndStatus(t *testing.T) {
	table := routing.DefaultTable(dimension.SchemaV2)

	_, err := Decode([]byte(`{"name":"x","created_at":"2025-03-01T12:00:00Z","flags":[{"dimension":{"key":"LEGAL_IP","label":"Legal"},"level":"SEVERE","status":"OPEN","description":"d","created_at":"2025-03-01T12:00:00Z","updated_at":"2025-03-01T12:00:00Z"}]}`), table)
	var serr *SerializationError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "flags[0].level", serr.Field)

	_, err = Decode([]byte(`{"name":"x","created_at":"2025-03-01T12:00:00Z","flags":[{"dimension":{"key":"LEGAL_IP","label":"Legal"},"level":"LOW","status":"PENDING","description":"d","created_at":"2025-03-01T12:00:00Z","updated_at":"2025-03-01T12:00:00Z"}]}`), table)
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "flags[0].status", serr.Field)
}

func TestDecodedContextRemainsOperational(t *testing.T) {
	ctx := buildContext(t)
	data, err := Encode(ctx)
	require.NoError(t, err)

	decoded, err := Decode(data, routing.DefaultTable(dimension.SchemaV2))
	require.NoError(t, err)

	// blocking semantics and routing survive the round trip
	assert.True(t, decoded.IsBlocked())
	f := decoded.FlagRisk(dimension.Safety, risk.LevelHigh, "new concern", "")
	assert.Equal(t, "VP Safety / Policy", f.Reviewer)
	require.NoError(t, decoded.Resolve(0, "rights cleared"))
}
