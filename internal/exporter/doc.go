// Package exporter renders aggregation results into output artifacts.
//
// BuildTable freezes the column set (fixed columns plus one per race
// category) and lays out one row per selected region that has loans.
// RenderCSV turns the table into text lines; CSVWriter and XLSXWriter
// persist it into the output cache.
//
// Example usage:
//
//	table := exporter.BuildTable(selection.Regions, result)
//	lines := exporter.RenderCSV(table)
//	path, err := exporter.NewCSVWriter(paths, logger).WriteLines(config.AggregateCSVFile, lines, exporter.WriteOptions{})
package exporter
