package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"Qurbani-app-backend/cache"
	"Qurbani-app-backend/handlers/customers"
	"Qurbani-app-backend/handlers/dashboard"
	"Qurbani-app-backend/hissa"
	"Qurbani-app-backend/models"
)

const xlsxType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Register mounts the admin spreadsheet exports under /export.
func Register(g fiber.Router, pool *pgxpool.Pool, cch *cache.Cache, jwtGuard, requireAdmin fiber.Handler) {
	g.Get("/customers", jwtGuard, requireAdmin, Customers(pool))
	g.Get("/user-summary", jwtGuard, requireAdmin, UserSummary(pool, cch))
}

type column struct {
	header string
	width  float64
}

var customerColumns = []column{
	{"Receipt", 12}, {"Name", 28}, {"Type", 14}, {"Phone", 15}, {"Email", 25},
	{"Area Incharge", 18}, {"Area", 18}, {"Zone Incharge", 18}, {"Zone", 18}, {"Collected By", 18},
}

var summaryColumns = []column{
	{"User", 22}, {"Area", 18}, {"Zone", 18}, {"Regions", 14},
	{"Shares Mumbai", 14}, {"Shares Out of Mumbai", 20},
	{"Paid Mumbai", 14}, {"Paid Out of Mumbai", 18},
	{"Pending Mumbai", 16}, {"Pending Out of Mumbai", 20},
}

// newSheet creates a workbook with one sheet and a bold header row.
func newSheet(name string, cols []column) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", name); err != nil {
		f.Close()
		return nil, err
	}
	header := make([]any, len(cols))
	for i, c := range cols {
		header[i] = c.header
		colName, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := f.SetColWidth(name, colName, colName, c.width); err != nil {
			f.Close()
			return nil, err
		}
	}
	if err := f.SetSheetRow(name, "A1", &header); err != nil {
		f.Close()
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, err
	}
	last, _ := excelize.ColumnNumberToName(len(cols))
	if err := f.SetCellStyle(name, "A1", last+"1", bold); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func regionsLabel(r hissa.RegionsInchargeOf) string {
	switch r {
	case hissa.MumbaiOnly:
		return hissa.Mumbai.String()
	case hissa.OutOfMumbaiOnly:
		return hissa.OutOfMumbai.String()
	}
	return "Both"
}

// CustomersWorkbook lays out one row per hissa holder.
func CustomersWorkbook(region hissa.Region, rows []models.Customer) (*bytes.Buffer, error) {
	sheet := region.String()
	f, err := newSheet(sheet, customerColumns)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	for i, cu := range rows {
		if err := setRow(f, sheet, i+2, []any{
			cu.Receipt, cu.Name, cu.Type.String(), deref(cu.Phone), deref(cu.Email),
			cu.AreaIncharge, cu.AreaName, cu.ZoneIncharge, cu.ZoneName, cu.UserName,
		}); err != nil {
			return nil, err
		}
	}
	return f.WriteToBuffer()
}

// SummaryWorkbook lays out one row per collector.
func SummaryWorkbook(rows []models.UserSummary) (*bytes.Buffer, error) {
	const sheet = "User Summary"
	f, err := newSheet(sheet, summaryColumns)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	for i, s := range rows {
		if err := setRow(f, sheet, i+2, []any{
			s.UserName, s.AreaName, s.ZoneName, regionsLabel(s.Region),
			s.SharesMumbai, s.SharesOutMumbai,
			s.PaidAmountMumbai, s.PaidAmountOutMumbai,
			s.PendingAmountMumbai, s.PendingAmountOutMumbai,
		}); err != nil {
			return nil, err
		}
	}
	return f.WriteToBuffer()
}

// Filename is the download name for an export taken at t.
func Filename(prefix string, t time.Time) string {
	return fmt.Sprintf("%s_%s.xlsx", prefix, t.Format("2006-01-02"))
}

func regionPrefix(r hissa.Region) string {
	if r == hissa.Mumbai {
		return "Mumbai"
	}
	return "OutOfMumbai"
}

func send(c *fiber.Ctx, name string, buf *bytes.Buffer) error {
	c.Set(fiber.HeaderContentType, xlsxType)
	c.Set("Content-Disposition", `attachment; filename="`+name+`"`)
	return c.Send(buf.Bytes())
}

// Customers - GET /export/customers?region=1|2. Exports every customer of
// the region not yet exported and marks them exported in the same transaction.
func Customers(pool *pgxpool.Pool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		region, err := dashboard.ParseRegion(c)
		if err != nil {
			return err
		}
		if region == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "region is required")
		}

		var buf *bytes.Buffer
		var exported int
		err = pgx.BeginFunc(c.Context(), pool, func(tx pgx.Tx) error {
			rows, err := tx.Query(c.Context(), `
				SELECT `+customers.Columns+` FROM customers
				WHERE region = $1 AND status = FALSE
				ORDER BY zone_name, area_name, user_name, receipt, id
				FOR UPDATE`, region)
			if err != nil {
				return err
			}
			list := []models.Customer{}
			ids := []int64{}
			for rows.Next() {
				var cu models.Customer
				if err := customers.Scan(rows, &cu); err != nil {
					rows.Close()
					return err
				}
				list = append(list, cu)
				ids = append(ids, cu.ID)
			}
			rows.Close()
			if err := rows.Err(); err != nil {
				return err
			}

			buf, err = CustomersWorkbook(region, list)
			if err != nil {
				return fmt.Errorf("build workbook: %w", err)
			}
			if len(ids) > 0 {
				if _, err := tx.Exec(c.Context(),
					`UPDATE customers SET status = TRUE, updated_at = NOW() WHERE id = ANY($1)`, ids); err != nil {
					return err
				}
			}
			exported = len(ids)
			return nil
		})
		if err != nil {
			return err
		}

		zap.L().Info("customers exported", zap.Stringer("region", region), zap.Int("rows", exported))
		c.Set("X-Exported-Count", fmt.Sprint(exported))
		return send(c, Filename(regionPrefix(region), time.Now()), buf)
	}
}

// UserSummary - GET /export/user-summary?region=
func UserSummary(pool *pgxpool.Pool, cch *cache.Cache) fiber.Handler {
	return func(c *fiber.Ctx) error {
		region, err := dashboard.ParseRegion(c)
		if err != nil {
			return err
		}
		rows, err := dashboard.CachedUserSummaries(c.Context(), pool, cch)
		if err != nil {
			return err
		}
		prefix := "UserSummary"
		if region != 0 {
			rows = dashboard.FilterByRegion(rows, region)
			prefix += "_" + regionPrefix(region)
		}
		buf, err := SummaryWorkbook(rows)
		if err != nil {
			return fmt.Errorf("build workbook: %w", err)
		}
		return send(c, Filename(prefix, time.Now()), buf)
	}
}
