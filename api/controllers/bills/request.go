package bills

import (
	"strings"

	"github.com/google/uuid"

	billdto "github.com/angelmondragon/inkledger-backend/api/controllers/bills/dto"
	"github.com/angelmondragon/inkledger-backend/internal/allocation"
	billsvc "github.com/angelmondragon/inkledger-backend/internal/bills"
	"github.com/angelmondragon/inkledger-backend/pkg/enums"
)

func toRecordPaymentInput(billID uuid.UUID, payload billdto.RecordPaymentRequest) billsvc.RecordPaymentInput {
	return billsvc.RecordPaymentInput{
		BillID:            billID,
		Amount:            payload.Amount,
		Method:            enums.PaymentMethod(payload.Method),
		PaidAt:            payload.PaidAt,
		Notes:             payload.Notes,
		RefundOfPaymentID: payload.RefundOfPaymentID,
	}
}

func toManualBillInput(branchID uuid.UUID, payload billdto.ManualBillRequest) billsvc.ManualBillInput {
	input := billsvc.ManualBillInput{
		BranchID:   branchID,
		CustomerID: payload.CustomerID,
		ArtistID:   payload.ArtistID,
		BillType:   enums.BillType(payload.BillType),
		Currency:   upper(payload.Currency),
		Notes:      payload.Notes,
		Item: billsvc.ManualItem{
			ServiceID:  payload.Item.ServiceID,
			Name:       payload.Item.Name,
			BasePrice:  payload.Item.BasePrice,
			FinalPrice: payload.Item.FinalPrice,
			Variants:   payload.Item.Variants,
		},
	}
	if payload.Payment != nil {
		input.Payment = &billsvc.ManualPayment{
			Amount: payload.Payment.Amount,
			Method: enums.PaymentMethod(payload.Payment.Method),
			PaidAt: payload.Payment.PaidAt,
			Notes:  payload.Payment.Notes,
		}
	}
	return input
}

func toFullEditInput(billID uuid.UUID, payload billdto.FullEditRequest) billsvc.FullEditInput {
	input := billsvc.FullEditInput{
		BillID:               billID,
		Header:               toHeaderPatch(payload.Header),
		RecomputeAllocations: payload.RecomputeAllocations,
	}
	if payload.Items != nil {
		input.Items = make([]billsvc.ItemEdit, 0, len(payload.Items))
		for _, item := range payload.Items {
			input.Items = append(input.Items, billsvc.ItemEdit{
				ID:         item.ID,
				ServiceID:  item.ServiceID,
				Name:       item.Name,
				BasePrice:  item.BasePrice,
				FinalPrice: item.FinalPrice,
				Variants:   item.Variants,
			})
		}
	}
	if payload.Payments != nil {
		input.Payments = make([]billsvc.PaymentEdit, 0, len(payload.Payments))
		for _, p := range payload.Payments {
			edit := billsvc.PaymentEdit{
				ID:                p.ID,
				Amount:            p.Amount,
				Method:            enums.PaymentMethod(p.Method),
				PaidAt:            p.PaidAt,
				Notes:             p.Notes,
				RefundOfPaymentID: p.RefundOfPaymentID,
			}
			if p.Allocation != nil {
				edit.Allocation = &allocation.Split{Artist: p.Allocation.Artist, Shop: p.Allocation.Shop}
			}
			input.Payments = append(input.Payments, edit)
		}
	}
	return input
}

func toHeaderPatch(h *billdto.HeaderRequest) *billsvc.HeaderPatch {
	if h == nil {
		return nil
	}
	patch := &billsvc.HeaderPatch{
		CustomerID: h.CustomerID,
		Currency:   upper(h.Currency),
		Notes:      h.Notes,
		VoidReason: h.VoidReason,
	}
	if h.ArtistID.Valid {
		if h.ArtistID.Value == nil {
			patch.ClearArtist = true
		} else {
			patch.ArtistID = h.ArtistID.Value
		}
	}
	if h.BillType != nil {
		bt := enums.BillType(*h.BillType)
		patch.BillType = &bt
	}
	if h.Status != nil {
		st := enums.BillStatus(*h.Status)
		patch.Status = &st
	}
	return patch
}

func upper(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.ToUpper(strings.TrimSpace(*value))
	return &v
}
