package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPricePerMember(t *testing.T) {
	tests := []struct {
		name       string
		basePrice  int64
		maxMembers int
		want       int64
	}{
		{"even split", 100000, 4, 25000},
		{"rounds up", 100000, 3, 33334},
		{"exact split", 186000, 4, 46500},
		{"indivisible", 119000, 6, 19834},
		{"single remainder", 10, 3, 4},
		{"one member", 150000, 1, 150000},
		{"zero members", 100000, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PricePerMember(tt.basePrice, tt.maxMembers))
		})
	}
}

func TestPricePerMemberNeverUnderCollects(t *testing.T) {
	for members := 2; members <= 50; members++ {
		price := PricePerMember(186000, members)
		assert.GreaterOrEqual(t, price*int64(members), int64(186000),
			"splitting across %d members must cover the base price", members)
	}
}

func TestAdminFeePerMember(t *testing.T) {
	tests := []struct {
		name    string
		price   int64
		pct     int
		flat    int64
		want    int64
	}{
		{"flat fee when no percentage", 25000, 0, 3500, 3500},
		{"percentage overrides flat", 25000, 10, 3500, 2500},
		{"percentage rounds up", 25001, 10, 3500, 2501},
		{"five percent", 46500, 5, 3500, 2325},
		{"negative percentage falls back to flat", 25000, -1, 3500, 3500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AdminFeePerMember(tt.price, tt.pct, tt.flat))
		})
	}
}

func TestMemberCharge(t *testing.T) {
	assert.Equal(t, int64(28500), MemberCharge(25000, 3500))
}
