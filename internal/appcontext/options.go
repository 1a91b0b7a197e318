package appcontext

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// ErrHelp is returned by Parse when the declared help option is given.
var ErrHelp = errors.New("help requested")

// OptionError wraps any misuse of the command-line surface.
type OptionError struct {
	Message string
}

func (e *OptionError) Error() string {
	return e.Message
}

func optionErrorf(format string, args ...interface{}) error {
	return &OptionError{Message: fmt.Sprintf(format, args...)}
}

type optionKind int

const (
	kindFlag optionKind = iota
	kindSingleValue
	kindMultiValue
)

// Option is one declared command-line option. Declaration methods return the
// Option so declarations chain.
type Option struct {
	name        string
	description string
	group       string
	kind        optionKind
	required    bool

	defaultValue string
	hasDefault   bool

	set    bool
	values []string
}

func (o *Option) SetDescription(d string) *Option {
	o.description = d
	return o
}

func (o *Option) SetTakesSingleValue() *Option {
	o.kind = kindSingleValue
	return o
}

// SetTakesValuesUntilNextOption makes the option consume every following
// argument up to the next declared option name.
func (o *Option) SetTakesValuesUntilNextOption() *Option {
	o.kind = kindMultiValue
	return o
}

func (o *Option) SetIsRequired() *Option {
	o.required = true
	return o
}

func (o *Option) SetDefaultValue(v string) *Option {
	o.defaultValue = v
	o.hasDefault = true
	return o
}

type constraintKind int

const (
	excludesOption constraintKind = iota
	excludesGroup
	impliesOption
)

type constraint struct {
	kind constraintKind
	a, b string
}

// OptionProcessor declares a program's options, parses the argument list
// against them, and enforces interdependencies.
type OptionProcessor struct {
	program string

	currentGroup string
	groupOrder   []string

	options map[string]*Option
	order   []string

	helpOption  string
	constraints []constraint
}

func NewOptionProcessor(program string) *OptionProcessor {
	return &OptionProcessor{
		program: program,
		options: map[string]*Option{},
	}
}

func (p *OptionProcessor) SetHelpOption(name string) {
	p.helpOption = name
}

// DeclareGroup starts a named group; subsequent declarations belong to it.
func (p *OptionProcessor) DeclareGroup(name string) {
	p.currentGroup = name
	p.groupOrder = append(p.groupOrder, name)
}

func (p *OptionProcessor) Declare(name string) *Option {
	o := &Option{name: name, group: p.currentGroup}
	p.options[name] = o
	p.order = append(p.order, name)
	return o
}

func (p *OptionProcessor) OptionExcludesOption(a, b string) {
	p.constraints = append(p.constraints, constraint{excludesOption, a, b})
}

func (p *OptionProcessor) OptionExcludesGroup(a, group string) {
	p.constraints = append(p.constraints, constraint{excludesGroup, a, group})
}

func (p *OptionProcessor) OptionImpliesOption(a, b string) {
	p.constraints = append(p.constraints, constraint{impliesOption, a, b})
}

// Parse consumes the argument list. It returns ErrHelp if the help option
// appears, or an *OptionError describing the first problem found.
func (p *OptionProcessor) Parse(args []string) error {
	for i := 0; i < len(args); {
		name := args[i]
		if name == p.helpOption && p.helpOption != "" {
			return ErrHelp
		}

		o, ok := p.options[name]
		if !ok {
			return optionErrorf("unknown or misplaced argument %q; see %s -help", name, p.program)
		}
		if o.set {
			return optionErrorf("option %q was given more than once", name)
		}
		o.set = true
		i++

		switch o.kind {
		case kindFlag:
			// Nothing further to consume.
		case kindSingleValue:
			if i >= len(args) {
				return optionErrorf("option %q requires a value", name)
			}
			o.values = []string{args[i]}
			i++
		case kindMultiValue:
			for i < len(args) {
				if _, isOption := p.options[args[i]]; isOption || args[i] == p.helpOption {
					break
				}
				o.values = append(o.values, args[i])
				i++
			}
			if len(o.values) == 0 {
				return optionErrorf("option %q requires at least one value", name)
			}
		}
	}

	return p.validate()
}

func (p *OptionProcessor) validate() error {
	for _, name := range p.order {
		o := p.options[name]
		if o.required && !o.set && !o.hasDefault {
			return optionErrorf("option %q is required", name)
		}
	}

	for _, c := range p.constraints {
		switch c.kind {
		case excludesOption:
			if p.Check(c.a) && p.Check(c.b) {
				return optionErrorf("options %q and %q cannot be used together", c.a, c.b)
			}
		case excludesGroup:
			if !p.Check(c.a) {
				continue
			}
			for _, name := range p.order {
				o := p.options[name]
				if o.group == c.b && o.set {
					return optionErrorf("option %q cannot be used with %q", c.a, name)
				}
			}
		case impliesOption:
			if p.Check(c.a) && !p.Check(c.b) {
				return optionErrorf("option %q requires option %q", c.a, c.b)
			}
		}
	}

	return nil
}

// Check reports whether the option was given on the command line.
func (p *OptionProcessor) Check(name string) bool {
	o, ok := p.options[name]
	return ok && o.set
}

// Get returns the option's value, falling back to its declared default.
func (p *OptionProcessor) Get(name string) string {
	o, ok := p.options[name]
	if !ok {
		return ""
	}
	if len(o.values) > 0 {
		return o.values[0]
	}
	return o.defaultValue
}

func (p *OptionProcessor) GetInt(name string) (int, error) {
	v := p.Get(name)
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, optionErrorf("option %q wants an integer, got %q", name, v)
	}
	return n, nil
}

// GetValues returns all values collected for a multi-valued option.
func (p *OptionProcessor) GetValues(name string) []string {
	o, ok := p.options[name]
	if !ok {
		return nil
	}
	return o.values
}

// SetDefault overrides an option's declared default, e.g. from a config
// file. Values given on the command line still win.
func (p *OptionProcessor) SetDefault(name, value string) {
	if o, ok := p.options[name]; ok {
		o.defaultValue = value
		o.hasDefault = true
	}
}

// PrintUsage writes the declared options, by group, with wrapped
// descriptions.
func (p *OptionProcessor) PrintUsage(w io.Writer) {
	fmt.Fprintf(w, "Usage: %s <options>\n", p.program)

	groups := append([]string(nil), p.groupOrder...)
	hasUngrouped := false
	for _, name := range p.order {
		if p.options[name].group == "" {
			hasUngrouped = true
		}
	}
	if hasUngrouped {
		groups = append([]string{""}, groups...)
	}

	for _, group := range groups {
		title := group
		if title == "" {
			title = "Options"
		}
		fmt.Fprintf(w, "\n%s:\n", title)

		names := []string{}
		for _, name := range p.order {
			if p.options[name].group == group {
				names = append(names, name)
			}
		}
		sort.Strings(names)

		for _, name := range names {
			o := p.options[name]
			suffix := ""
			switch o.kind {
			case kindSingleValue:
				suffix = " <value>"
			case kindMultiValue:
				suffix = " <value>..."
			}
			fmt.Fprintf(w, "  %s%s\n", name, suffix)
			for _, line := range wrap(o.description, 72) {
				fmt.Fprintf(w, "        %s\n", line)
			}
			if o.hasDefault {
				fmt.Fprintf(w, "        (default: %s)\n", o.defaultValue)
			}
		}
	}
}

func wrap(text string, width int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	lines := []string{}
	line := words[0]
	for _, word := range words[1:] {
		if len(line)+1+len(word) > width {
			lines = append(lines, line)
			line = word
			continue
		}
		line += " " + word
	}

	return append(lines, line)
}
