package sheets

import (
	"context"

	gsheets "google.golang.org/api/sheets/v4"
)

// valueInputOption makes the sheet parse written dates like typed input.
const valueInputOption = "USER_ENTERED"

type serviceValues struct {
	svc *gsheets.Service
}

// NewValuesAPI adapts a Sheets service to ValuesAPI.
func NewValuesAPI(svc *gsheets.Service) ValuesAPI {
	return serviceValues{svc: svc}
}

func (v serviceValues) Get(ctx context.Context, spreadsheetID, readRange string) ([][]any, error) {
	resp, err := v.svc.Spreadsheets.Values.Get(spreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (v serviceValues) BatchUpdate(ctx context.Context, spreadsheetID string, data []*gsheets.ValueRange) error {
	req := &gsheets.BatchUpdateValuesRequest{
		ValueInputOption: valueInputOption,
		Data:             data,
	}
	_, err := v.svc.Spreadsheets.Values.BatchUpdate(spreadsheetID, req).Context(ctx).Do()
	return err
}
