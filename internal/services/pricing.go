package services

// Pricing is computed once at group creation and frozen on the group row, so
// later edits to the app catalog never change what existing members owe.
// All amounts are rupiah in the smallest unit; division always rounds up so
// the platform never under-collects.

// PricePerMember splits the app's full subscription price across the
// configured roster size, rounding up.
func PricePerMember(basePrice int64, maxMembers int) int64 {
	if maxMembers <= 0 {
		return 0
	}
	n := int64(maxMembers)
	return (basePrice + n - 1) / n
}

// AdminFeePerMember returns the platform surcharge for one member. Apps that
// define admin_fee_percentage pay that share of the per-member price; all
// others pay the flat platform fee.
func AdminFeePerMember(pricePerMember int64, adminFeePercentage int, flatFee int64) int64 {
	if adminFeePercentage <= 0 {
		return flatFee
	}
	pct := int64(adminFeePercentage)
	return (pricePerMember*pct + 99) / 100
}

// MemberCharge is the total a joining member owes: their seat price plus the
// admin fee.
func MemberCharge(pricePerMember, adminFee int64) int64 {
	return pricePerMember + adminFee
}
