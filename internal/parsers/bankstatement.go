package parsers

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"daysheet-reconciliation-service/internal/models"
	apperrors "daysheet-reconciliation-service/pkg/errors"
	"daysheet-reconciliation-service/pkg/logger"

	"github.com/google/uuid"
)

// ParseStats summarizes one parse run.
type ParseStats struct {
	LinesRead int
	Parsed    int
	Skipped   int
	Errors    []*apperrors.Error
}

// BankStatementParser parses one bank's CSV export format into transaction
// candidates.
type BankStatementParser struct {
	config *BankConfig
	logger logger.Logger
}

// NewBankStatementParser creates a parser for the given bank configuration.
// A nil configuration selects the standard layout.
func NewBankStatementParser(config *BankConfig) (*BankStatementParser, error) {
	if config == nil {
		config = DefaultBankConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "bank_config", config.Name, err)
	}
	return &BankStatementParser{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("bank_parser"),
	}, nil
}

// Parse reads CSV content and produces transaction candidates. Each
// candidate gets a fresh ID; identity for deduplication purposes is the
// signature, not the ID. Row-level failures are collected into the stats and
// skipped; only unreadable input or a missing required column is fatal.
func (p *BankStatementParser) Parse(r io.Reader, sourceName string) ([]*models.BankTransaction, *ParseStats, error) {
	reader := csv.NewReader(bufio.NewReader(r))
	reader.Comma = p.config.Delimiter
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	stats := &ParseStats{}
	columns := map[string]int{}

	if p.config.HasHeader {
		header, err := reader.Read()
		if err != nil {
			return nil, stats, apperrors.ParseError(apperrors.CodeInvalidFormat, sourceName, 1, "", "", err)
		}
		stats.LinesRead++
		for i, name := range header {
			columns[p.config.canonicalColumn(name)] = i
		}
		for _, required := range []string{
			p.config.canonicalColumn(p.config.DateColumn),
			p.config.canonicalColumn(p.config.DescriptionColumn),
			p.config.canonicalColumn(p.config.AmountColumn),
		} {
			if _, ok := columns[required]; !ok {
				return nil, stats, apperrors.ParseError(apperrors.CodeMissingColumn, sourceName, 1, required, "", nil)
			}
		}
	} else {
		// Headerless exports use positional layout: date, description,
		// amount.
		columns[p.config.canonicalColumn(p.config.DateColumn)] = 0
		columns[p.config.canonicalColumn(p.config.DescriptionColumn)] = 1
		columns[p.config.canonicalColumn(p.config.AmountColumn)] = 2
	}

	dateIdx := columns[p.config.canonicalColumn(p.config.DateColumn)]
	descIdx := columns[p.config.canonicalColumn(p.config.DescriptionColumn)]
	amountIdx := columns[p.config.canonicalColumn(p.config.AmountColumn)]

	var transactions []*models.BankTransaction
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		stats.LinesRead++
		line := stats.LinesRead
		if err != nil {
			stats.Skipped++
			stats.Errors = append(stats.Errors,
				apperrors.ParseError(apperrors.CodeInvalidFormat, sourceName, line, "", "", err))
			continue
		}
		if isEmptyRow(record) {
			continue
		}

		tx, rowErr := p.parseRow(record, sourceName, line, dateIdx, descIdx, amountIdx)
		if rowErr != nil {
			stats.Skipped++
			stats.Errors = append(stats.Errors, rowErr)
			continue
		}
		transactions = append(transactions, tx)
		stats.Parsed++
	}

	p.logger.WithFields(logger.Fields{
		"source":  sourceName,
		"bank":    p.config.Name,
		"parsed":  stats.Parsed,
		"skipped": stats.Skipped,
	}).Info("Parsed bank statement")

	return transactions, stats, nil
}

func (p *BankStatementParser) parseRow(
	record []string,
	sourceName string,
	line, dateIdx, descIdx, amountIdx int,
) (*models.BankTransaction, *apperrors.Error) {
	maxIdx := dateIdx
	if descIdx > maxIdx {
		maxIdx = descIdx
	}
	if amountIdx > maxIdx {
		maxIdx = amountIdx
	}
	if len(record) <= maxIdx {
		return nil, apperrors.ParseError(apperrors.CodeInvalidFormat, sourceName, line, "", "",
			fmt.Errorf("expected at least %d columns, got %d", maxIdx+1, len(record)))
	}

	date, err := time.Parse(p.config.DateFormat, strings.TrimSpace(record[dateIdx]))
	if err != nil {
		// Fall back to the common formats before rejecting the row; exports
		// from the same bank occasionally mix layouts across pages.
		date, err = models.ParseDate(record[dateIdx])
		if err != nil {
			return nil, apperrors.ParseError(apperrors.CodeInvalidData, sourceName, line,
				p.config.DateColumn, record[dateIdx], err)
		}
	}

	amount, err := models.ParseAmount(record[amountIdx])
	if err != nil {
		return nil, apperrors.ParseError(apperrors.CodeInvalidData, sourceName, line,
			p.config.AmountColumn, record[amountIdx], err)
	}

	description := strings.TrimSpace(record[descIdx])
	if description == "" {
		return nil, apperrors.ParseError(apperrors.CodeInvalidData, sourceName, line,
			p.config.DescriptionColumn, "", fmt.Errorf("description cannot be empty"))
	}

	return &models.BankTransaction{
		ID:          uuid.NewString(),
		Date:        models.TruncateToDate(date),
		Description: description,
		Amount:      amount,
	}, nil
}

func isEmptyRow(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
