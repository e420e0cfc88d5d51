// Package domain models ORBS radiological monitoring data for seawater, fish
// and seaweed stations around the Fukushima Daiichi site.
//
// # Data Source
//
// The ORBS portal (https://www.monitororbs.jp/en/download) publishes one CSV
// per station and sample type. A separate station-coordinate document lists
// every station with its numeric id, operating organization, optional name and
// a degrees/minutes/seconds coordinate string. Raw files are linked to
// stations by the suffix after the last underscore in the file name, so
// "Seawater_10_42.csv" belongs to station 42.
//
// # Coordinate Format
//
//	"<lat DMS>/<lon DMS>"  →  e.g. 37°25'12"N/141°2'33"E
//	The numeric runs of each half are degrees, minutes, seconds and fractional
//	seconds. S and W hemispheres are negative. Full-width characters are
//	normalized first. See [ParseDMS].
//
// # Measurement Cells
//
//	"12.3±0.4"  →  value 12.3, uncertainty 0.4
//	"5%"        →  value 5 (the percent sign is stripped, not divided)
//	"-" or ""   →  null
//
// Unparsable cells become null and are logged; they never abort a file.
//
// # Seawater Layout
//
// Seawater tables stack several sampling depths side by side:
//
//	line 3:  depth labels, sparse; each marks the first column of its block
//	line 4:  nuclide labels; every value column is followed by a not-detected column
//	line 6+: data rows; the first column of each block is the sampling period
//
// Each block yields a [DepthBlock]. Within a block, a column with no number in
// any row is omitted from the output, while a column with at least one number
// is written for every row, as null where the row has none. [Reading] carries
// that distinction.
//
// # Fish and Seaweed Layout
//
// Two preamble rows precede a single header. "Date and time of Sampling" is
// renamed to begperiod, and the Dt and ND cells are each split into a value
// and an uncertainty. Text cells keep a "-" as written.
//
// # Station Matching
//
// Stations without a name are looked up in reference tables by organization
// and coordinates. Reference coordinates are stored at inconsistent precision,
// so a target is rounded to the candidate's own number of decimals before
// comparing. See [MatchCoordinate].
package domain
