package layout

// Resolve scales the proportional table to width x height. Components
// greater than 1 are absolute pixels and pass through unchanged.
func Resolve(width, height int) Layout {
	s := scaler{w: float64(width), h: float64(height)}
	return Layout{
		Width:  width,
		Height: height,
		Market: MarketScreen{
			PriceConvertible:    s.box(px(2179, 1078), px(2308, 1102)),
			PriceNonConvertible: s.box(px(2179, 1156), px(2308, 1178)),
			ConvertibleMax:      s.pt(ratio{0.9085, 0.7222}),
			ConvertibleMin:      s.pt(ratio{0.8095, 0.7222}),
			ConvertibleBuy:      s.pt(ratio{2189.0 / BaseWidth, 0.7979}),
			NonConvertibleMax:   s.pt(px(2329, 1112)),
			NonConvertibleMin:   s.pt(px(2059, 1112)),
			NonConvertibleBuy:   s.pt(px(2186, 1225)),
		},
		Balance: BalanceHUD{
			Hover:  s.pt(px(2200, 70)),
			Region: s.box(px(1912, 360), px(2324, 390)),
		},
		Loadout: LoadoutScreen{
			Options: []Point{
				s.pt(px(244, 404)),
				s.pt(px(117, 500)),
				s.pt(px(117, 591)),
				s.pt(px(117, 690)),
			},
			PriceArea:    s.box(px(2128, 1133), px(2413, 1191)),
			BuyButton:    s.pt(px(2245, 1165)),
			FailureCheck: s.box(px(418, 280), px(867, 387)),
		},
		Recovery: RecoveryRegions{
			EquipmentCheck:        s.box(px(2180, 1120), px(2291, 1165)),
			EnterLoadoutHint:      s.box(px(128, 1380), px(405, 1420)),
			EquipmentSchemeButton: s.box(px(347, 1379), px(570, 1430)),
			PrepareArea:           s.box(px(2110, 1264), px(2310, 1314)),
			StartActionArea:       s.box(px(2120, 889), px(2296, 935)),
			ReadyShortcutArea:     s.box(px(2017, 1266), px(2126, 1309)),
		},
		Lobby: LobbyScreen{
			BattlefieldMode:  s.pt(px(336, 637)),
			TarkovMode:       s.pt(px(336, 384)),
			PrepareEquipment: s.pt(px(2100, 1291)),
			ZeroDam:          s.pt(px(1091, 351)),
			StartAction:      s.pt(px(2198, 859)),
		},
		Storage: StorageScreen{
			EnterStorage: s.pt(px(427, 76)),
			TransferAll:  s.pt(px(390, 1403)),
			Grid:         s.box(px(1651, 177), px(2416, 1028)),
			CellSize:     s.pt(px(84, 84)),
			SellButton:   s.pt(px(1965, 939)),
		},
		SellDialog: SellDialog{
			PriceTextArea:      s.box(px(1672, 838), px(1806, 873)),
			MinPriceButton:     s.pt(px(655, 904)),
			MinPriceArea:       s.box(px(615, 986), px(710, 1016)),
			SecondMinPriceArea: s.box(px(715, 986), px(810, 1016)),
			MinPriceCountArea:  s.box(px(575, 500), px(720, 985)),
			QuantityLeft:       s.pt(px(1563, 749)),
			QuantityRight:      s.pt(px(1937, 749)),
			PriceText:          s.pt(px(1748, 860)),
			SellNumArea:        s.box(px(1948, 678), px(2027, 711)),
			ExpectedRevenue:    s.box(px(1642, 910), px(1920, 950)),
			DetailButton:       s.pt(px(1867, 929)),
			TotalPriceArea:     s.box(px(1844, 707), px(2010, 740)),
			FinalSellButton:    s.pt(px(1757, 994)),
		},
		Mail: MailScreen{
			MailButton:  s.pt(px(2313, 73)),
			TradeButton: s.pt(px(598, 100)),
			GetButton:   s.pt(px(256, 1270)),
		},
		Launcher: LauncherScreen{
			AppVersionArea: s.box(px(1663, 85), px(1766, 135)),
			EnterGame:      s.pt(px(744, 584)),
		},
	}
}

type ratio struct{ x, y float64 }

// px expresses a point measured on the base resolution.
func px(x, y float64) ratio {
	return ratio{x / BaseWidth, y / BaseHeight}
}

type scaler struct{ w, h float64 }

// eps keeps values like 1165/1440*1440 from truncating to 1164.
const eps = 1e-9

func (s scaler) pt(r ratio) Point {
	if r.x > 1 || r.y > 1 {
		return Point{int(r.x), int(r.y)}
	}
	return Point{int(r.x*s.w + eps), int(r.y*s.h + eps)}
}

func (s scaler) box(a, b ratio) Box {
	if a.x > 1 || a.y > 1 || b.x > 1 || b.y > 1 {
		return Box{int(a.x), int(a.y), int(b.x), int(b.y)}
	}
	p, q := s.pt(a), s.pt(b)
	return Box{p.X, p.Y, q.X, q.Y}
}
