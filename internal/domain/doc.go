// Package domain models the three data sources this service aligns: HURDAT2
// best-track fixes, SHIPS statistical predictors, and GLM lightning group
// records.
//
// # Best track (HURDAT2)
//
// Post-season reanalysis data from the NHC, one file per basin. A storm is a
// header line
//
//	AL092022,              IAN,     39,
//
// followed by that many fix lines:
//
//	20220928, 1800,  , HU, 26.7N,  82.2W, 105,  947, ... ,  20
//
// Fixes are 6-hourly (plus landfall/peak specials). Latitude and longitude
// carry a hemisphere suffix (26.7N → +26.7, 82.2W → -82.2). Maximum sustained
// wind is in knots, minimum pressure in millibars, radius of maximum winds in
// nautical miles; -99 and -999 are the missing-value markers. Format:
// https://www.aoml.noaa.gov/hrd/hurdat/hurdat2-format.pdf
//
// # SHIPS predictors
//
// Fixed-width text from RAMMB/CIRA, one block per storm per synoptic time.
// Each line ends with a code naming the predictor: HEAD opens a block (name,
// 2-digit-year timestamp, intensity, position, ATCF code), SHRD is 850-200 mb
// shear magnitude in tenths of knots, SHTD its direction in degrees, LAST
// closes the block. Only the fields this pipeline aligns are extracted.
//
// # GLM group records
//
// Geostationary Lightning Mapper L2 groups, exported by the upstream
// collector as CSV objects in S3 mirroring the satellite file layout
// (<prefix>/YYYY/DDD/HH/). Object filenames encode the observation start
// time in an "s" field (sYYYYDDDHHMMSSt). Each row is one group: time,
// latitude, longitude, and payload fields (energy in joules, area in m²,
// quality flag). Groups arrive unordered and high-volume; they are streamed,
// never materialized per storm.
//
// # Alignment output
//
// Every storm produces one table with exactly one row per time bin, keyed by
// the bin midpoint. Position is linearly interpolated onto midpoints, scalar
// predictors are nearest-neighbor assigned within a tolerance (nil when out
// of tolerance), and lightning groups are counted and reduced over a
// fixed-degree box around the interpolated center. A bin with no lightning
// has count 0; a bin with no scalar within tolerance has a nil field. The
// two are distinct on purpose: absent lightning is a measurement, an absent
// predictor is a gap.
package domain
