package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeInputs(t *testing.T, dir string) {
	t.Helper()
	files := map[string]string{
		"order_customer_dataset.csv": `customer_id,customer_unique_id,customer_zip_code_prefix,customer_city,customer_state
c1,u1,01310,são paulo,SP
c2,u2,20040,rio de janeiro,RJ
`,
		"order_dataset.csv": `order_id,customer_id,order_status,order_purchase_timestamp,order_approved_at,order_delivered_carrier_date,order_delivered_customer_date,order_estimated_delivery_date
o1,c1,delivered,2018-08-01 10:00:00,,,2018-08-06 18:30:00,2018-08-05 00:00:00
o2,c2,shipped,2018-08-20 09:15:00,,,,2018-09-01 00:00:00
`,
		"order_items_dataset.csv": `order_id,order_item_id,product_id,seller_id,shipping_limit_date,price,freight_value
o1,1,p1,s1,2018-08-03 00:00:00,100.00,10.00
o2,1,p2,s1,2018-08-22 00:00:00,30.00,5.50
`,
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	rootCfg = rootConfig{}
	runJSON = false
	viewsLimit = 20

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRunAndViews(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "mart")
	writeInputs(t, in)

	common := []string{"--driver", "csv", "--input-dir", in, "--output-dir", out, "--reference-date", "2018-09-01"}

	stdout, err := execute(t, append([]string{"run"}, common...)...)
	require.NoError(t, err, stdout)
	assert.Contains(t, stdout, "reference date 2018-09-01")
	assert.Contains(t, stdout, "| fact_orders ")
	assert.FileExists(t, filepath.Join(out, "mv_monthly_kpis.csv"))

	stdout, err = execute(t, append([]string{"views", "mv_city_revenue"}, common...)...)
	require.NoError(t, err, stdout)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 4, stdout)
	assert.Contains(t, lines[0], "customer_state")
	assert.Contains(t, lines[2], "são paulo")
	assert.Equal(t, len([]rune(lines[2])), len([]rune(lines[3])), "rows align by display width")
}

func TestViews_RejectsUnknownView(t *testing.T) {
	_, err := execute(t, "views", "order_dataset", "--driver", "memory")
	assert.Error(t, err)
}

func TestRun_MissingInputs(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	_, err := execute(t, "run", "--driver", "csv", "--input-dir", t.TempDir(), "--output-dir", t.TempDir())
	assert.ErrorContains(t, err, "table not found")
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeTable(&buf, [][]string{
		{"city", "n"},
		{"são paulo", "2"},
		{"rio", "10"},
	}))

	want := "" +
		"| city      | n   |\n" +
		"| --------- | --- |\n" +
		"| são paulo | 2   |\n" +
		"| rio       | 10  |\n"
	assert.Equal(t, want, buf.String())
}
