// Package dataprocessing turns the raw census and HMDA datasets into
// per-region loan statistics.
//
// # Components
//
//  1. Region filter: DecodeCensusRows and FilterRegions select regions whose
//     average household income is below a threshold.
//  2. Normalizer: LoanReader and ReadLoanRecords project HMDA rows onto
//     domain.LoanRecord, keeping only the analysed columns.
//  3. Aggregator: Fold accumulates running sums, excluded counts, race
//     tallies and per-tract minority percentages; Finalize derives averages.
//
// # Data Flow
//
//	census JSON → FilterRegions → region ids → HMDA CSV → LoanReader → Aggregator → AggregateResult
//
// # Averages
//
// Every numeric field has its own denominator: loan count minus the number
// of values in that field that failed numeric coercion. A field with no
// numeric values averages to 0 and is listed in ZeroDenominatorFields.
// Minority population is averaged per distinct census tract, not per loan.
package dataprocessing
