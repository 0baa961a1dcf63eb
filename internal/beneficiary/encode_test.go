package beneficiary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hivepress/internal/bridge"
)

func split(account, share string) bridge.SplitRequest {
	return bridge.SplitRequest{Account: account, Share: share}
}

func TestEncode_Basic(t *testing.T) {
	got, err := Encode([]bridge.SplitRequest{split("alice", "10"), split("@Bob", "2.5")}, nil)
	require.NoError(t, err)
	assert.Equal(t, []bridge.RewardSplit{
		{Account: "alice", Weight: 1000},
		{Account: "bob", Weight: 250},
	}, got)
}

func TestEncode_Clamps(t *testing.T) {
	got, err := Encode([]bridge.SplitRequest{
		split("zero", "0"),
		split("tiny", "0.001"),
		split("negative", "-5"),
		split("huge", "250"),
		split("exact", "100"),
	}, nil)
	require.NoError(t, err)
	require.Len(t, got, 5)

	assert.Equal(t, uint16(1), got[0].Weight)
	assert.Equal(t, uint16(1), got[1].Weight)
	assert.Equal(t, uint16(1), got[2].Weight)
	assert.Equal(t, uint16(10000), got[3].Weight)
	assert.Equal(t, uint16(10000), got[4].Weight)
}

func TestEncode_DuplicatesFirstWins(t *testing.T) {
	got, err := Encode([]bridge.SplitRequest{
		split("alice", "10"),
		split("bob", "5"),
		split("ALICE", "50"),
		split("@alice", "1"),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []bridge.RewardSplit{
		{Account: "alice", Weight: 1000},
		{Account: "bob", Weight: 500},
	}, got)
}

func TestEncode_Default(t *testing.T) {
	t.Run("appended when absent", func(t *testing.T) {
		got, err := Encode([]bridge.SplitRequest{split("alice", "10")}, &Default{Account: "platform", Percent: 3})
		require.NoError(t, err)
		assert.Equal(t, []bridge.RewardSplit{
			{Account: "alice", Weight: 1000},
			{Account: "platform", Weight: 300},
		}, got)
	})

	t.Run("not duplicated when present", func(t *testing.T) {
		got, err := Encode([]bridge.SplitRequest{split("Platform", "7")}, &Default{Account: "platform", Percent: 3})
		require.NoError(t, err)
		assert.Equal(t, []bridge.RewardSplit{{Account: "platform", Weight: 700}}, got)
	})

	t.Run("skipped when empty or zero", func(t *testing.T) {
		got, err := Encode(nil, &Default{Account: "", Percent: 3})
		require.NoError(t, err)
		assert.Empty(t, got)

		got, err = Encode(nil, &Default{Account: "platform", Percent: 0})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("default alone", func(t *testing.T) {
		got, err := Encode(nil, &Default{Account: "platform", Percent: 1})
		require.NoError(t, err)
		assert.Equal(t, []bridge.RewardSplit{{Account: "platform", Weight: 100}}, got)
	})
}

func TestEncode_Errors(t *testing.T) {
	tests := []struct {
		name string
		reqs []bridge.SplitRequest
	}{
		{"empty recipient", []bridge.SplitRequest{split("", "10")}},
		{"whitespace recipient", []bridge.SplitRequest{split("  @ ", "10")}},
		{"non-numeric share", []bridge.SplitRequest{split("alice", "ten")}},
		{"empty share", []bridge.SplitRequest{split("alice", "")}},
		{"nan share", []bridge.SplitRequest{split("alice", "NaN")}},
		{"inf share", []bridge.SplitRequest{split("alice", "+Inf")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.reqs, nil)
			require.Error(t, err)
			assert.Nil(t, got)
			assert.True(t, bridge.IsValidationError(err))
		})
	}
}

func TestEncode_PercentSign(t *testing.T) {
	got, err := Encode([]bridge.SplitRequest{split("alice", " 12.5% ")}, nil)
	require.NoError(t, err)
	assert.Equal(t, uint16(1250), got[0].Weight)
}

func TestEncode_TotalNotEnforced(t *testing.T) {
	got, err := Encode([]bridge.SplitRequest{split("a", "80"), split("b", "80")}, nil)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 16000, Total(got))
}

func TestEncode_Properties(t *testing.T) {
	inputs := [][]bridge.SplitRequest{
		{split("a", "0"), split("b", "100000"), split("a", "5")},
		{split("x", "33.333"), split("y", "33.333"), split("z", "33.334")},
		{split("@Dup", "1"), split("dup", "2"), split(" DUP ", "3")},
	}
	for _, in := range inputs {
		got, err := Encode(in, &Default{Account: "dup", Percent: 50})
		require.NoError(t, err)

		seen := map[string]bool{}
		for _, s := range got {
			assert.GreaterOrEqual(t, s.Weight, uint16(MinWeight))
			assert.LessOrEqual(t, s.Weight, uint16(MaxWeight))
			assert.False(t, seen[s.Account], "recipient %s repeated", s.Account)
			seen[s.Account] = true
		}
	}
}

func TestDuplicates(t *testing.T) {
	assert.Empty(t, Duplicates(nil))
	assert.Empty(t, Duplicates([]bridge.SplitRequest{split("alice", "1"), split("bob", "2")}))
	assert.Equal(t, []string{"alice"}, Duplicates([]bridge.SplitRequest{
		split("alice", "10"), split("@ALICE", "5"), split("bob", "1"), split(" ", "1"),
	}))
}
