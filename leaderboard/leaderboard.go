/*
Package leaderboard computes the monthly public leaderboard and the rupee
incentives derived from it.

PIPELINE (per month, strictly ordered):

	Aggregator.Aggregate    sources -> []PointBundle
	BuildPublicBoard        []PointBundle -> []PublicLeaderboardRow   (upsert)
	Calculator.Build        stored public rows -> []RupeeIncentiveRow (upsert)

The incentive phase reads the public rows back from the store, so every
public row that was written gets exactly one incentive row.

IDEMPOTENCE:
  All inputs are read in a deterministic order and every output is keyed
  by (rm_name, period_month). Rerunning a month with unchanged sources and
  configuration rewrites identical documents.

SEE ALSO:
  - schedule/: Which months to run
  - config/: Scoring configuration snapshot
*/
package leaderboard
