package agent

// RecommendTier applies the sizing rules to pick a partnership tier. Teams
// over 50 need enterprise; teams over 15, or visitors drowning in more than
// three time wasters, get growth; everyone else starts on starter.
func RecommendTier(info BusinessInfo, _ Proposal) Tier {
	switch {
	case info.TeamSize > 50:
		return TierEnterprise
	case info.TeamSize > 15 || len(info.TimeWasters) > 3:
		return TierGrowth
	default:
		return TierStarter
	}
}
