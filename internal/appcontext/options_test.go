package appcontext

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func declareTestOptions() *OptionProcessor {
	p := NewOptionProcessor("prog")
	p.SetHelpOption("-help")

	p.DeclareGroup("Input / output file options")
	p.Declare("-g").SetDescription("input file").SetTakesSingleValue().SetIsRequired()
	p.Declare("-table").SetDescription("table name").SetTakesSingleValue().SetDefaultValue("Variant")

	p.DeclareGroup("Selection options")
	p.Declare("-incl-range").SetDescription("ranges").SetTakesValuesUntilNextOption()
	p.Declare("-excl-range").SetDescription("ranges").SetTakesValuesUntilNextOption()

	p.DeclareGroup("Output options")
	p.Declare("-index").SetDescription("build index")
	p.Declare("-clobber").SetDescription("overwrite")
	p.Declare("-list").SetDescription("list")
	p.Declare("-vcf").SetDescription("vcf")

	p.OptionExcludesGroup("-index", "Selection options")
	p.OptionExcludesOption("-list", "-vcf")
	p.OptionImpliesOption("-clobber", "-index")

	return p
}

func TestParseBasics(t *testing.T) {
	p := declareTestOptions()
	err := p.Parse([]string{"-g", "file.bgen", "-incl-range", "01:1-2", "02:3-4", "-list"})
	require.NoError(t, err)

	require.Equal(t, "file.bgen", p.Get("-g"))
	require.Equal(t, []string{"01:1-2", "02:3-4"}, p.GetValues("-incl-range"))
	require.True(t, p.Check("-list"))
	require.False(t, p.Check("-vcf"))

	// Defaults apply without being "checked".
	require.Equal(t, "Variant", p.Get("-table"))
	require.False(t, p.Check("-table"))
}

func TestMultiValueStopsAtNextOption(t *testing.T) {
	p := declareTestOptions()
	err := p.Parse([]string{"-g", "f", "-incl-range", "01:1-2", "-excl-range", "03:5-6"})
	require.NoError(t, err)
	require.Equal(t, []string{"01:1-2"}, p.GetValues("-incl-range"))
	require.Equal(t, []string{"03:5-6"}, p.GetValues("-excl-range"))
}

func TestParseErrors(t *testing.T) {
	cases := [][]string{
		{"-g"},                              // missing value
		{"-g", "f", "-bogus"},               // unknown option
		{"-incl-range", "01:1-2"},           // missing required -g
		{"-g", "f", "-g", "f2"},             // repeated option
		{"-g", "f", "-incl-range"},          // empty multi-value
		{"-g", "f", "-list", "-vcf"},        // mutually exclusive
		{"-g", "f", "-clobber"},             // implies -index
		{"-g", "f", "-index", "-incl-range", "01:1-2"}, // option excludes group
	}

	for _, args := range cases {
		p := declareTestOptions()
		err := p.Parse(args)
		require.Error(t, err, "%v", args)

		var optErr *OptionError
		require.ErrorAs(t, err, &optErr, "%v", args)
	}
}

func TestHelpRequested(t *testing.T) {
	p := declareTestOptions()
	require.ErrorIs(t, p.Parse([]string{"-help"}), ErrHelp)
}

func TestSetDefaultOverride(t *testing.T) {
	p := declareTestOptions()
	p.SetDefault("-table", "MyView")
	require.NoError(t, p.Parse([]string{"-g", "f"}))
	require.Equal(t, "MyView", p.Get("-table"))

	// Command-line values still win over injected defaults.
	p = declareTestOptions()
	p.SetDefault("-table", "MyView")
	require.NoError(t, p.Parse([]string{"-g", "f", "-table", "Explicit"}))
	require.Equal(t, "Explicit", p.Get("-table"))
}

func TestGetInt(t *testing.T) {
	p := NewOptionProcessor("prog")
	p.Declare("-level").SetTakesSingleValue().SetDefaultValue("9")

	require.NoError(t, p.Parse(nil))
	n, err := p.GetInt("-level")
	require.NoError(t, err)
	require.Equal(t, 9, n)

	p = NewOptionProcessor("prog")
	p.Declare("-level").SetTakesSingleValue()
	require.NoError(t, p.Parse([]string{"-level", "x"}))
	_, err = p.GetInt("-level")
	require.Error(t, err)
}

func TestPrintUsageMentionsEveryOption(t *testing.T) {
	p := declareTestOptions()
	var buf bytes.Buffer
	p.PrintUsage(&buf)

	for _, name := range []string{"-g", "-table", "-incl-range", "-excl-range", "-index", "-clobber", "-list", "-vcf"} {
		require.Contains(t, buf.String(), name)
	}
	require.Contains(t, buf.String(), "Selection options:")
	require.Contains(t, buf.String(), "(default: Variant)")
}

func TestReturnCode(t *testing.T) {
	require.Equal(t, 0, ReturnCode(nil))
	require.Equal(t, -1, ReturnCode(&OptionError{Message: "x"}))
	require.Equal(t, 3, ReturnCode(HaltError{Code: 3}))
}
