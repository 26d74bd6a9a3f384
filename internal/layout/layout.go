// Package layout resolves the game's proportional UI coordinate table into
// pixel positions for the live resolution.
package layout

import "image"

// Base resolution the proportional table was measured at.
const (
	BaseWidth  = 2560
	BaseHeight = 1440
)

type Point struct {
	X int
	Y int
}

func (p Point) Add(q Point) Point { return Point{p.X + q.X, p.Y + q.Y} }
func (p Point) IsZero() bool      { return p.X == 0 && p.Y == 0 }
func (p Point) Image() image.Point {
	return image.Pt(p.X, p.Y)
}

// Box is a capture region given by its top-left and bottom-right corners.
type Box struct {
	X1 int
	Y1 int
	X2 int
	Y2 int
}

func (b Box) Rect() image.Rectangle { return image.Rect(b.X1, b.Y1, b.X2, b.Y2) }
func (b Box) Width() int            { return b.Rect().Dx() }
func (b Box) Height() int           { return b.Rect().Dy() }
func (b Box) Center() Point {
	r := b.Rect()
	return Point{r.Min.X + r.Dx()/2, r.Min.Y + r.Dy()/2}
}

// =========================
// Screens
// =========================

// Layout is the resolved coordinate table.
type Layout struct {
	Width      int
	Height     int
	Market     MarketScreen
	Balance    BalanceHUD
	Loadout    LoadoutScreen
	Recovery   RecoveryRegions
	Lobby      LobbyScreen
	Storage    StorageScreen
	SellDialog SellDialog
	Mail       MailScreen
	Launcher   LauncherScreen
}

// MarketScreen is the hoarding item detail view.
type MarketScreen struct {
	PriceConvertible    Box
	PriceNonConvertible Box
	ConvertibleMax      Point
	ConvertibleMin      Point
	ConvertibleBuy      Point
	NonConvertibleMax   Point
	NonConvertibleMin   Point
	NonConvertibleBuy   Point
}

func (m MarketScreen) PriceArea(convertible bool) Box {
	if convertible {
		return m.PriceConvertible
	}
	return m.PriceNonConvertible
}

// QuantityButton returns the max or min quantity button for the item type.
func (m MarketScreen) QuantityButton(convertible, max bool) Point {
	switch {
	case convertible && max:
		return m.ConvertibleMax
	case convertible:
		return m.ConvertibleMin
	case max:
		return m.NonConvertibleMax
	default:
		return m.NonConvertibleMin
	}
}

func (m MarketScreen) BuyButton(convertible bool) Point {
	if convertible {
		return m.ConvertibleBuy
	}
	return m.NonConvertibleBuy
}

// BalanceHUD is the currency readout revealed by hovering the wallet.
type BalanceHUD struct {
	Hover  Point
	Region Box
}

// LoadoutScreen is the rolling mode loadout purchase view.
type LoadoutScreen struct {
	Options      []Point
	PriceArea    Box
	BuyButton    Point
	FailureCheck Box
}

// RecoveryRegions hold the template probes used to detect stuck states.
type RecoveryRegions struct {
	EquipmentCheck        Box
	EnterLoadoutHint      Box
	EquipmentSchemeButton Box
	PrepareArea           Box
	StartActionArea       Box
	ReadyShortcutArea     Box
}

// LobbyScreen holds the navigation buttons between game modes.
type LobbyScreen struct {
	BattlefieldMode  Point
	TarkovMode       Point
	PrepareEquipment Point
	ZeroDam          Point
	StartAction      Point
}

// StorageScreen is the stash with the pending-sale grid.
type StorageScreen struct {
	EnterStorage Point
	TransferAll  Point
	// Grid covers the first ten rows of the stash.
	Grid       Box
	CellSize   Point
	SellButton Point
}

// SellDialog is the listing window.
type SellDialog struct {
	PriceTextArea      Box
	MinPriceButton     Point
	MinPriceArea       Box
	SecondMinPriceArea Box
	MinPriceCountArea  Box
	QuantityLeft       Point
	QuantityRight      Point
	PriceText          Point
	SellNumArea        Box
	ExpectedRevenue    Box
	DetailButton       Point
	TotalPriceArea     Box
	FinalSellButton    Point
}

// QuantityAt returns the slider position selling ratio of the stock.
func (s SellDialog) QuantityAt(ratio float64) Point {
	span := s.QuantityRight.X - s.QuantityLeft.X
	return Point{s.QuantityLeft.X + int(float64(span)*ratio), s.QuantityLeft.Y}
}

type MailScreen struct {
	MailButton  Point
	TradeButton Point
	GetButton   Point
}

// LauncherScreen is shown while the game boots.
type LauncherScreen struct {
	AppVersionArea Box
	EnterGame      Point
}
