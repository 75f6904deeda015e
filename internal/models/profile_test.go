package models_test

import (
	"strings"
	"testing"

	"strangerchat/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileNormalize(t *testing.T) {
	tests := []struct {
		name    string
		in      models.Profile
		want    models.Profile
		wantErr bool
	}{
		{
			name: "Trims whitespace",
			in:   models.Profile{Name: "  Ann ", Location: "\tKyiv\n", Gender: models.GenderFemale, LookingFor: models.LookingForMale},
			want: models.Profile{Name: "Ann", Location: "Kyiv", Gender: models.GenderFemale, LookingFor: models.LookingForMale},
		},
		{
			name: "Fills form defaults",
			in:   models.Profile{Name: "Ann", Location: "Kyiv"},
			want: models.Profile{Name: "Ann", Location: "Kyiv", Gender: models.GenderOther, LookingFor: models.LookingForEveryone},
		},
		{
			name:    "Empty name after trim",
			in:      models.Profile{Name: "   ", Location: "Kyiv"},
			wantErr: true,
		},
		{
			name:    "Empty location",
			in:      models.Profile{Name: "Ann"},
			wantErr: true,
		},
		{
			name:    "Unknown gender",
			in:      models.Profile{Name: "Ann", Location: "Kyiv", Gender: "robot"},
			wantErr: true,
		},
		{
			name:    "Unknown looking_for",
			in:      models.Profile{Name: "Ann", Location: "Kyiv", LookingFor: "other"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.Normalize()
			if tt.wantErr {
				assert.ErrorIs(t, err, models.ErrInvalidProfile)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProfileNormalize_TruncatesTo50(t *testing.T) {
	long := strings.Repeat("a", 60)
	unicodeLong := strings.Repeat("ї", 55)

	got, err := models.Profile{Name: long, Location: unicodeLong}.Normalize()

	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("a", 50), got.Name)
	assert.Equal(t, strings.Repeat("ї", 50), got.Location, "truncation counts characters, not bytes")
}

func TestProfileNormalize_ExactlyFiftyIsKept(t *testing.T) {
	exact := strings.Repeat("b", models.MaxProfileFieldLength)

	got, err := models.Profile{Name: exact, Location: exact}.Normalize()

	require.NoError(t, err)
	assert.Equal(t, exact, got.Name)
}

func TestLookingForAccepts(t *testing.T) {
	assert.True(t, models.LookingForEveryone.Accepts(models.GenderOther))
	assert.True(t, models.LookingForFemale.Accepts(models.GenderFemale))
	assert.False(t, models.LookingForFemale.Accepts(models.GenderMale))
	assert.False(t, models.LookingForMale.Accepts(models.GenderOther))
}

func TestPartnerInfoFrom_Placeholders(t *testing.T) {
	info := models.PartnerInfoFrom("", "", "")

	assert.Equal(t, "Stranger", info.Name)
	assert.Equal(t, "Unknown", info.Location)
	assert.Equal(t, models.GenderOther, info.Gender)

	known := models.PartnerInfoFrom("Bo", "Lviv", models.GenderMale)
	assert.Equal(t, models.PartnerInfo{Name: "Bo", Location: "Lviv", Gender: models.GenderMale}, known)
}
