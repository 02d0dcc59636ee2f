package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/atrbot/internal/bot"
	"github.com/hyperjump/atrbot/internal/cli"
	"go.uber.org/zap"
)

// console is the interactive question loop of "atrbot ask".
type console struct {
	responder   bot.Responder
	endKeywords []string
	goodbye     string
	fallback    string
	format      cli.OutputFormat
	showSources bool
	logger      *zap.Logger
}

func (c *console) isEnd(text string) bool {
	for _, kw := range c.endKeywords {
		if strings.EqualFold(text, kw) {
			return true
		}
	}
	return false
}

// run reads questions line by line until an end keyword, EOF or ctx ends.
func (c *console) run(ctx context.Context, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "🤖 Chatbot listo para responder tus preguntas. Escribe 'salir' para terminar.")
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "Tú: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if c.isEnd(question) {
			fmt.Fprintf(out, "🤖 %s\n", c.goodbye)
			return nil
		}
		answer, err := c.responder.Generate(ctx, question)
		if err != nil {
			c.logger.Error("failed to generate answer", zap.Error(err))
			fmt.Fprintf(out, "🤖: %s\n", c.fallback)
			continue
		}
		if err := cli.WriteAnswer(out, answer, c.format, c.showSources); err != nil {
			return err
		}
	}
}
