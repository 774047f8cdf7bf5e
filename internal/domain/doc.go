// Package domain models daily sea-surface temperature (SST) archives and the
// detection of marine heatwaves against a day-of-year climatology.
//
// # Data Sources
//
// Observations arrive as tabular rows (hand-edited archive CSVs, spreadsheet
// exports) or as hourly Open-Meteo marine samples that are reduced to daily
// means by [DailyMeans]. Every source is normalized into an [Archive], keyed by
// canonical date and then by site key.
//
// # Archive Conventions
//
// Date format:
//
//	Canonical dates are "YYYY-MM-DD" (Gregorian, no zone). Input cells may use
//	"DD-MM-YYYY", "DD/MM/YYYY", "D-M-YYYY", "D/M/YYYY" or "DD.MM.YYYY"; day-first
//	layouts are tried before any generic parser so "03/04/2025" is 3 April, never
//	4 March. See [NormalizeDate].
//
// Number format:
//
//	Spreadsheet exports may carry thousand separators as spaces and a decimal
//	comma: " 28,75 " → 28.75. Unparseable cells are missing values, not errors.
//	See [NormalizeNumber].
//
// Merge rule:
//
//	Writes are per site per date. A row carrying only "jimbaran" for a date
//	leaves the stored "sanur" value for that date alone, and a date once present
//	is never removed.
//
// # Baseline Conventions
//
// The climatology table has one row per day of a fixed 365-day year. Rows carry
// either per-site columns ("<site>_clim", "<site>_p90") or generic columns
// ("climatology_mean", "percentile_90", "sigma") that apply to every site;
// generic columns win when both are present on a row. Leap-year dates after
// 28 February are shifted back one day before lookup, so 1 March is always
// day 60. See [BaselineDayOfYear].
//
// # Heatwave Classification
//
// A day is hot when SST exceeds the 90th-percentile threshold (p90). Runs of at
// least [MinEventDuration] consecutive hot days form an [Event]; a missing
// observation or missing threshold breaks the run. Severity is measured in
// multiples of delta = p90 - clim:
//
//	excess < 1δ Category I | < 2δ Category II | < 3δ Category III | ≥ 3δ Category IV
//
// Days without a usable climatology (missing clim, or p90 <= clim) are
// classified as heat spikes (category 0). An event takes the category of its
// most severe day.
package domain
