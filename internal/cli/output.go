package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

// Output форматирует ответы контроллера для терминала.
//
// Данные (таблицы, JSON) идут в stdout, служебные сообщения в stderr,
// чтобы вывод можно было передавать по конвейеру в jq и подобные.
type Output struct {
	asJSON bool
	data   io.Writer
	msg    io.Writer
}

// NewOutput создаёт Output. При asJSON данные выводятся в JSON
// вместо таблицы.
func NewOutput(asJSON bool) *Output {
	return &Output{asJSON: asJSON, data: os.Stdout, msg: os.Stderr}
}

// Print выводит данные таблицей или, в JSON-режиме, как jsonData.
func (o *Output) Print(headers []string, rows [][]string, jsonData any) {
	if o.asJSON {
		o.json(jsonData)
		return
	}
	o.table(headers, rows)
}

// Success выводит служебное сообщение в stderr.
func (o *Output) Success(msg string) {
	fmt.Fprintln(o.msg, msg)
}

func (o *Output) table(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(o.data, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	underline := make([]string, len(headers))
	for i, h := range headers {
		underline[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(underline, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	tw.Flush()
}

func (o *Output) json(v any) {
	enc := json.NewEncoder(o.data)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}
